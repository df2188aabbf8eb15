package httpapi

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// Terminals that speak protobuf send a google.protobuf.Struct whose keys
// match the JSON field names.

// ── Heartbeat ────────────────────────────────────────────────────────────────

func heartbeatRequestFromProto(p *structpb.Struct) types.HeartbeatRequest {
	f := p.GetFields()
	return types.HeartbeatRequest{
		DeviceID:        f["device_id"].GetStringValue(),
		FirmwareVersion: f["firmware_version"].GetStringValue(),
		UptimeSeconds:   uint64(max(f["uptime_s"].GetNumberValue(), 0)),
		IP:              f["ip"].GetStringValue(),
	}
}

func heartbeatResponseToProto(r types.HeartbeatResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ok":          r.OK,
		"known":       r.Known,
		"device_id":   r.DeviceID,
		"server_time": r.ServerTime,
	})
}

// ── Terminal events ──────────────────────────────────────────────────────────

// terminalEventFromProto accepts occurred_at either as an RFC 3339 string or
// as fractional unix seconds.
func terminalEventFromProto(p *structpb.Struct) (types.TerminalEvent, error) {
	f := p.GetFields()
	ev := types.TerminalEvent{
		ID:       f["id"].GetStringValue(),
		DeviceID: f["device_id"].GetStringValue(),
		UserID:   f["user_id"].GetStringValue(),
		Method:   types.Method(f["method"].GetStringValue()),
		Status:   types.Status(f["status"].GetStringValue()),
		Detail:   f["detail"].GetStringValue(),
	}

	switch v := f["occurred_at"].GetKind().(type) {
	case nil:
	case *structpb.Value_StringValue:
		ev.OccurredAt = v.StringValue
	case *structpb.Value_NumberValue:
		sec, frac := math.Modf(v.NumberValue)
		ts := &timestamppb.Timestamp{Seconds: int64(sec), Nanos: int32(frac * 1e9)}
		if err := ts.CheckValid(); err != nil {
			return types.TerminalEvent{}, fmt.Errorf("occurred_at: %w", err)
		}
		ev.OccurredAt = ts.AsTime().Format(time.RFC3339Nano)
	default:
		return types.TerminalEvent{}, fmt.Errorf("occurred_at: unsupported kind %T", v)
	}
	return ev, nil
}

func terminalResponseToProto(r types.TerminalEventResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ok":                r.OK,
		"event_id":          r.EventID,
		"status":            string(r.Status),
		"notification_sent": r.NotificationSent,
		"persisted":         r.Persisted,
		"duplicate":         r.Duplicate,
		"server_time":       r.ServerTime,
	})
}

func terminalResponse(res types.ProcessedResult, now time.Time) types.TerminalEventResponse {
	return types.TerminalEventResponse{
		OK:               true,
		EventID:          res.Event.ID,
		Status:           res.Event.Status,
		NotificationSent: res.Event.NotificationSent,
		Persisted:        res.Persisted,
		Duplicate:        res.Duplicate,
		ServerTime:       now.UTC().Format(time.RFC3339Nano),
	}
}
