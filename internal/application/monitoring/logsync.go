package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/goroutine"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// SyncResult is the outcome of one sync cycle for one device.
type SyncResult struct {
	DeviceID   uint               `json:"device_id"`
	DeviceSID  string             `json:"device_sid"`
	DeviceName string             `json:"device_name"`
	Success    bool               `json:"success"`
	Kind       device.FailureKind `json:"kind,omitempty"`
	Message    string             `json:"message"`
	Fetched    int                `json:"fetched"`
	Entries    int                `json:"entries"`
	Cursor     int64              `json:"cursor"`
	Gaps       []device.Gap       `json:"gaps,omitempty"`
	Duration   time.Duration      `json:"-"`
}

// LogSyncEngine pulls access logs after the durable cursor, stores them and
// advances the cursor in one step, then notifies observers.
type LogSyncEngine struct {
	conn      *ConnectionService
	store     device.LogStore
	audits    device.AuditRepository
	observers []LogObserver
	recorder  Recorder
	logger    logger.Interface
	now       func() time.Time
}

func NewLogSyncEngine(
	conn *ConnectionService,
	store device.LogStore,
	audits device.AuditRepository,
	recorder Recorder,
	log logger.Interface,
	observers ...LogObserver,
) *LogSyncEngine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &LogSyncEngine{
		conn:      conn,
		store:     store,
		audits:    audits,
		observers: observers,
		recorder:  recorder,
		logger:    log,
		now:       biztime.NowUTC,
	}
}

// Sync runs one cycle for d. Failures are reported in the result.
func (e *LogSyncEngine) Sync(ctx context.Context, d *device.Device) SyncResult {
	start := e.now()
	res := e.sync(ctx, d)
	res.DeviceID = d.ID()
	res.DeviceSID = d.SID()
	res.DeviceName = d.Name()
	res.Duration = e.now().Sub(start)

	e.recorder.ObserveSync(d.SID(), res.Kind, res.Entries, len(res.Gaps), res.Duration)
	return res
}

func (e *LogSyncEngine) sync(ctx context.Context, d *device.Device) SyncResult {
	transport, out := e.conn.EnsureConnected(ctx, d)
	if !out.Success {
		return SyncResult{Kind: out.Kind, Message: out.Message}
	}

	cursor, err := e.store.ReadCursor(ctx, d.ID())
	if err != nil {
		e.logger.Errorw("failed to read sync cursor", "device_id", d.ID(), "error", err)
		e.audit(ctx, d.ID(), device.AuditError, device.SeverityError, "failed to read sync cursor", nil)
		return SyncResult{Kind: device.FailurePersistence, Message: "failed to read sync cursor"}
	}

	records, err := transport.FetchAccessLogs(ctx, cursor.LastProcessedID)
	if err != nil {
		out := e.conn.RecordFetchFailure(ctx, d, "fetch access logs", err)
		return SyncResult{Kind: out.Kind, Message: out.Message, Cursor: cursor.LastProcessedID}
	}
	e.conn.RecordActivity(ctx, d, true)

	if len(records) == 0 {
		return SyncResult{Success: true, Message: "no new entries", Cursor: cursor.LastProcessedID}
	}

	batch := device.PrepareBatch(cursor.LastProcessedID, records)
	if batch.Anomalous() {
		e.logger.Warnw("device returned unexpected log sequence",
			"device_id", d.ID(),
			"stale", batch.Stale,
			"duplicate", batch.Duplicate,
			"reordered", batch.Reordered)
		e.audit(ctx, d.ID(), device.AuditDataFetch, device.SeverityWarning,
			"device returned stale, duplicate or out-of-order records", map[string]any{
				"stale":     batch.Stale,
				"duplicate": batch.Duplicate,
				"reordered": batch.Reordered,
			})
	}
	if len(batch.Entries) == 0 {
		return SyncResult{Success: true, Message: "no new entries", Fetched: len(records), Cursor: cursor.LastProcessedID}
	}

	maxID := batch.MaxID()
	inserted, err := e.store.AppendBatch(ctx, d.ID(), batch.Entries, maxID)
	if err != nil {
		e.logger.Errorw("failed to store access logs", "device_id", d.ID(), "entries", len(batch.Entries), "error", err)
		e.audit(ctx, d.ID(), device.AuditError, device.SeverityError, "failed to store access logs", map[string]any{
			"entries": len(batch.Entries),
			"cursor":  cursor.LastProcessedID,
		})
		return SyncResult{
			Kind:    device.FailurePersistence,
			Message: "failed to store access logs",
			Fetched: len(records),
			Cursor:  cursor.LastProcessedID,
		}
	}

	gaps := device.DetectGaps(cursor, batch.Entries)
	if len(gaps) > 0 {
		e.recordGaps(ctx, d, cursor, gaps)
	}

	e.notify(ctx, device.IngestedBatch{
		DeviceID:   d.ID(),
		DeviceSID:  d.SID(),
		DeviceName: d.Name(),
		Entries:    batch.Entries,
	})

	e.logger.Debugw("access logs synchronized",
		"device_id", d.ID(),
		"fetched", len(records),
		"inserted", inserted,
		"cursor", maxID)

	return SyncResult{
		Success: true,
		Message: fmt.Sprintf("stored %d new entries", inserted),
		Fetched: len(records),
		Entries: inserted,
		Cursor:  maxID,
		Gaps:    gaps,
	}
}

func (e *LogSyncEngine) recordGaps(ctx context.Context, d *device.Device, cursor device.Cursor, gaps []device.Gap) {
	ranges := make([]string, len(gaps))
	for i, g := range gaps {
		ranges[i] = g.String()
	}
	missing := device.MissingCount(gaps)

	e.logger.Warnw("gap in device log sequence",
		"device_id", d.ID(),
		"cursor", cursor.LastProcessedID,
		"missing", missing,
		"ranges", strings.Join(ranges, ","))
	e.audit(ctx, d.ID(), device.AuditDataFetch, device.SeverityWarning,
		fmt.Sprintf("missing %d log entries: %s", missing, strings.Join(ranges, ",")),
		map[string]any{
			"cursor":  cursor.LastProcessedID,
			"missing": missing,
			"ranges":  ranges,
		})
}

// notify dispatches batch to every observer on its own goroutine. Observers
// never see a batch that is not stored.
func (e *LogSyncEngine) notify(ctx context.Context, batch device.IngestedBatch) {
	detached := context.WithoutCancel(ctx)
	for _, o := range e.observers {
		goroutine.SafeGo(e.logger, "log-observer", func() {
			o.OnLogsIngested(detached, batch)
		})
	}
}

func (e *LogSyncEngine) audit(ctx context.Context, deviceID uint, category device.AuditCategory, severity device.Severity, message string, details map[string]any) {
	entry := device.NewAuditEntry(deviceID, category, severity, message, details, e.now())
	if err := e.audits.Record(ctx, entry); err != nil {
		e.logger.Warnw("failed to record audit entry", "device_id", deviceID, "error", err)
	}
}
