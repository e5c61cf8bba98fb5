package deviceclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/deviceprotocol"
)

// unwrapData returns the payload of an envelope, or body itself when the
// device answered with a bare value. A non-nil envelope is returned when the
// device reported success=false. An envelope without data yields an empty
// list for list resources and the whole object otherwise.
func unwrapData(body []byte, wantList bool) (json.RawMessage, *deviceprotocol.Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil, errUnexpectedBody
	}
	if trimmed[0] != '{' {
		return trimmed, nil, nil
	}

	var env deviceprotocol.Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Failed() {
		return nil, &env, nil
	}
	if len(env.Data) == 0 {
		if wantList {
			return json.RawMessage("[]"), nil, nil
		}
		return trimmed, nil, nil
	}
	return env.Data, nil, nil
}

func decodeObjects(raw json.RawMessage) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return obj, nil
}

// parseLogRecords converts raw records into entries. Unknown fields are kept
// in Details.
func parseLogRecords(deviceID uint, items []map[string]any) ([]device.LogEntry, error) {
	out := make([]device.LogEntry, 0, len(items))
	for i, item := range items {
		idVal, idKey := pick(item, deviceprotocol.LogIDKeys)
		logID, ok := asInt64(idVal)
		if !ok {
			return nil, fmt.Errorf("record %d: missing or invalid id", i)
		}

		entry := device.LogEntry{DeviceID: deviceID, DeviceLogID: logID}
		used := map[string]struct{}{idKey: {}}

		if v, k := pick(item, deviceprotocol.LogUserKeys); k != "" {
			entry.UserID = asString(v)
			used[k] = struct{}{}
		}
		if v, k := pick(item, deviceprotocol.LogEventKeys); k != "" {
			if code, ok := asInt64(v); ok {
				entry.EventType = device.EventType(code)
			}
			used[k] = struct{}{}
		}
		if v, k := pick(item, deviceprotocol.LogTimeKeys); k != "" {
			if ts, ok := parseDeviceTime(v); ok {
				entry.EventTime = ts
			}
			used[k] = struct{}{}
		}

		for k, v := range item {
			if _, skip := used[k]; skip {
				continue
			}
			if entry.Details == nil {
				entry.Details = make(map[string]any)
			}
			entry.Details[k] = normalize(v)
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseUsers(items []map[string]any) []deviceprotocol.User {
	out := make([]deviceprotocol.User, 0, len(items))
	for _, item := range items {
		id, _ := pick(item, deviceprotocol.UserIDKeys)
		u := deviceprotocol.User{ID: asString(id)}
		if u.ID == "" {
			continue
		}
		name, _ := pick(item, deviceprotocol.UserNameKeys)
		group, _ := pick(item, deviceprotocol.UserGroupKeys)
		card, _ := pick(item, deviceprotocol.UserCardKeys)
		u.Name, u.GroupID, u.CardNumber = asString(name), asString(group), asString(card)
		out = append(out, u)
	}
	return out
}

func parseGroups(items []map[string]any) []deviceprotocol.Group {
	out := make([]deviceprotocol.Group, 0, len(items))
	for _, item := range items {
		id, _ := pick(item, deviceprotocol.GroupIDKeys)
		name, _ := pick(item, deviceprotocol.GroupNameKeys)
		g := deviceprotocol.Group{ID: asString(id), Name: asString(name)}
		if g.ID != "" {
			out = append(out, g)
		}
	}
	return out
}

func pick(item map[string]any, keys []string) (any, string) {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			return v, k
		}
	}
	return nil, ""
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	case float64:
		return int64(t), true
	}
	return 0, false
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func normalize(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// parseDeviceTime accepts RFC3339, the firmware's local layout (read as
// UTC) and unix seconds.
func parseDeviceTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC(), true
		}
		if ts, err := time.ParseInLocation(deviceprotocol.DeviceTimeLayout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	if secs, ok := asInt64(v); ok && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}
