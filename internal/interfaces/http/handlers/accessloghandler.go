package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/application/device/usecases"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/utils"
)

// AccessLogHandler lists stored access logs.
type AccessLogHandler struct {
	listUC listAccessLogsUseCase
	logger logger.Interface
}

func NewAccessLogHandler(listUC listAccessLogsUseCase, logger logger.Interface) *AccessLogHandler {
	return &AccessLogHandler{listUC: listUC, logger: logger}
}

// List handles GET /access-logs. Supported filters: device_id, user_id,
// event_type, from and to (RFC 3339).
func (h *AccessLogHandler) List(c *gin.Context) {
	query, p, err := parseListAccessLogsQuery(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.listUC.Execute(c.Request.Context(), *query)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, result.Logs, result.Total, p.Page, p.PageSize)
}

func parseListAccessLogsQuery(c *gin.Context) (*usecases.ListAccessLogsQuery, utils.Pagination, error) {
	p := utils.ParsePagination(c)
	query := &usecases.ListAccessLogsQuery{
		DeviceRef: c.Query("device_id"),
		UserID:    c.Query("user_id"),
		Offset:    p.Offset(),
		Limit:     p.PageSize,
	}

	if raw := c.Query("event_type"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, p, errors.NewValidationError("event_type must be an integer")
		}
		query.EventType = &v
	}

	var err error
	if query.From, err = parseTimeQuery(c, "from"); err != nil {
		return nil, p, err
	}
	if query.To, err = parseTimeQuery(c, "to"); err != nil {
		return nil, p, err
	}
	return query, p, nil
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.NewValidationError(key+" must be an RFC 3339 timestamp", raw)
	}
	t = t.UTC()
	return &t, nil
}
