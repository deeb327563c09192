package api

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// FlowID identifies a flow. Producers may encode it as a JSON string or a
// JSON number; both decode to the same string form
type FlowID string

// ErrInvalidFlowID is returned when a flow ID is neither a string nor a number
var ErrInvalidFlowID = errors.New("flow id must be a string or number")

// UnmarshalJSON accepts string and numeric flow IDs
func (id *FlowID) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	switch res.Type {
	case gjson.String:
		*id = FlowID(res.Str)
	case gjson.Number:
		*id = numericFlowID(res)
	case gjson.Null:
		*id = ""
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFlowID, res.Raw)
	}
	return nil
}

// numericFlowID renders a number the way a JavaScript producer would
// stringify it, so 42, 42.0 and 4.2e1 all name flow "42"
func numericFlowID(res gjson.Result) FlowID {
	n := res.Num
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return FlowID(strconv.FormatInt(int64(n), 10))
	}
	return FlowID(strconv.FormatFloat(n, 'f', -1, 64))
}
