package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kode4food/runstream/pkg/log"
)

type (
	// ExecutionUpdate is the payload of an execution_update message. Every
	// field except FlowID is optional, and an absent field means "no change"
	ExecutionUpdate struct {
		FlowID       FlowID          `json:"flowId"`
		Status       *Status         `json:"status,omitempty"`
		Progress     *int            `json:"progress,omitempty"`
		Message      *string         `json:"message,omitempty"`
		CurrentNode  *string         `json:"currentNode,omitempty"`
		Timestamp    *Timestamp      `json:"timestamp,omitempty"`
		ResponseData json.RawMessage `json:"responseData,omitempty"`
	}

	// Timestamp decodes either an RFC 3339 string or epoch milliseconds
	Timestamp struct {
		time.Time
	}
)

var (
	// ErrInvalidTimestamp is returned for timestamps of any other shape
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrInvalidUpdate is returned when an update payload is not an object
	ErrInvalidUpdate = errors.New("execution update must be an object")
)

// NewUpdate starts an update for the given flow
func NewUpdate(flowID FlowID) *ExecutionUpdate {
	return &ExecutionUpdate{FlowID: flowID}
}

// WithStatus returns the update with its status set
func (u *ExecutionUpdate) WithStatus(s Status) *ExecutionUpdate {
	u.Status = &s
	return u
}

// WithProgress returns the update with its progress set
func (u *ExecutionUpdate) WithProgress(p int) *ExecutionUpdate {
	u.Progress = &p
	return u
}

// WithMessage returns the update with its human message set
func (u *ExecutionUpdate) WithMessage(msg string) *ExecutionUpdate {
	u.Message = &msg
	return u
}

// WithNode returns the update with its current node set
func (u *ExecutionUpdate) WithNode(node string) *ExecutionUpdate {
	u.CurrentNode = &node
	return u
}

// WithTimestamp returns the update with its timestamp set
func (u *ExecutionUpdate) WithTimestamp(t time.Time) *ExecutionUpdate {
	u.Timestamp = &Timestamp{Time: t}
	return u
}

// WithResponse returns the update carrying body as a JSON string response
func (u *ExecutionUpdate) WithResponse(body string) *ExecutionUpdate {
	data, _ := json.Marshal(body)
	u.ResponseData = data
	return u
}

// MatchesFlow reports whether the update concerns the given flow
func (u *ExecutionUpdate) MatchesFlow(id FlowID) bool {
	return u.FlowID == id
}

// Response returns the raw response payload as text. JSON strings are
// unquoted, other JSON values keep their encoded form, and null or missing
// payloads produce an empty string
func (u *ExecutionUpdate) Response() string {
	if len(u.ResponseData) == 0 {
		return ""
	}
	res := gjson.ParseBytes(u.ResponseData)
	switch res.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return res.Str
	default:
		return res.Raw
	}
}

// UnmarshalJSON decodes an update leniently. Only a malformed flowId fails
// the payload: an optional field of the wrong shape is treated as absent
func (u *ExecutionUpdate) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return fmt.Errorf("%w: %s", ErrInvalidUpdate, res.Raw)
	}

	var id FlowID
	if f := res.Get("flowId"); f.Exists() {
		if err := id.UnmarshalJSON([]byte(f.Raw)); err != nil {
			return err
		}
	}

	*u = ExecutionUpdate{FlowID: id}
	if s, ok := optionalString(id, res, "status"); ok {
		st := Status(s)
		u.Status = &st
	}
	if s, ok := optionalString(id, res, "message"); ok {
		u.Message = &s
	}
	if s, ok := optionalString(id, res, "currentNode"); ok {
		u.CurrentNode = &s
	}
	u.Progress = optionalProgress(id, res.Get("progress"))
	u.Timestamp = optionalTimestamp(id, res.Get("timestamp"))
	if f := res.Get("responseData"); f.Exists() {
		u.ResponseData = json.RawMessage(f.Raw)
	}
	return nil
}

func optionalString(id FlowID, res gjson.Result, key string) (string, bool) {
	f := res.Get(key)
	switch f.Type {
	case gjson.String:
		return f.Str, true
	case gjson.Null:
		return "", false
	default:
		if f.Exists() {
			ignoreField(id, key, f)
		}
		return "", false
	}
}

// optionalProgress rounds fractional percentages to the nearest integer
func optionalProgress(id FlowID, f gjson.Result) *int {
	switch f.Type {
	case gjson.Number:
		if math.IsNaN(f.Num) || math.IsInf(f.Num, 0) {
			break
		}
		p := int(math.Round(max(min(f.Num, math.MaxInt32), math.MinInt32)))
		return &p
	case gjson.Null:
		return nil
	}
	if f.Exists() {
		ignoreField(id, "progress", f)
	}
	return nil
}

func optionalTimestamp(id FlowID, f gjson.Result) *Timestamp {
	if !f.Exists() || f.Type == gjson.Null {
		return nil
	}
	var ts Timestamp
	if err := ts.UnmarshalJSON([]byte(f.Raw)); err != nil {
		ignoreField(id, "timestamp", f)
		return nil
	}
	return &ts
}

func ignoreField(id FlowID, key string, f gjson.Result) {
	slog.Debug("Ignoring unparseable update field",
		log.FlowID(id),
		slog.String("field", key),
		slog.String("value", f.Raw))
}

// UnmarshalJSON accepts RFC 3339 strings and epoch milliseconds
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	switch res.Type {
	case gjson.Null:
		t.Time = time.Time{}
	case gjson.Number:
		t.Time = time.UnixMilli(res.Int())
	case gjson.String:
		parsed, err := time.Parse(time.RFC3339Nano, res.Str)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
		}
		t.Time = parsed
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTimestamp, res.Raw)
	}
	return nil
}

// MarshalJSON encodes the timestamp as an RFC 3339 string
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}
