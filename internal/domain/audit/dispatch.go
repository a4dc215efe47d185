package audit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// ErrTargetUnavailable means there was no target to forward the call to
var ErrTargetUnavailable = errors.New("audit: target unavailable")

// codec detaches recorded payloads from the caller's memory. Numbers decode
// as json.Number so their text is kept exactly.
var codec = sonic.Config{UseNumber: true, SortMapKeys: true}.Froze()

// IsAccessor reports whether method is a pass-through accessor
func IsAccessor(method string) bool {
	return strings.HasPrefix(strings.ToLower(method), "get")
}

// Dispatch is the single interception point. call runs the target method; a
// nil call is treated as an unreachable target.
//
// Accessors run without events and their errors are dropped in favor of the
// zero result. Other methods are bracketed by a CALL event and a RESULT or
// ERROR event carrying the CALL's ID; the target's error is returned as is.
// Params and results are recorded as JSON trees copied at the time of the
// event, so later changes to the caller's values do not reach the history.
// A panicking target is recorded as an ERROR and the panic continues.
func Dispatch[T any](log *Log, method string, params interface{}, call func() (T, error)) (T, error) {
	var zero T

	if IsAccessor(method) {
		if call == nil {
			return zero, nil
		}
		result, err := call()
		if err != nil {
			return zero, nil
		}
		return result, nil
	}

	callEvent := log.Append(types.Event{
		Type:   types.EventCall,
		Method: &method,
		Params: snapshot(params),
	})

	if call == nil {
		log.Append(errorEvent(method, callEvent.ID, ErrTargetUnavailable.Error()))
		return zero, ErrTargetUnavailable
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		if r := recover(); r != nil {
			log.Append(errorEvent(method, callEvent.ID, fmt.Sprintf("panic: %v", r)))
			panic(r)
		}
	}()

	result, err := call()
	completed = true

	if err != nil {
		log.Append(errorEvent(method, callEvent.ID, err.Error()))
		return result, err
	}

	log.Append(types.Event{
		Type:      types.EventResult,
		Method:    &method,
		Result:    eventResult(method, result),
		RelatedID: &callEvent.ID,
	})
	return result, nil
}

func errorEvent(method, callID, message string) types.Event {
	return types.Event{
		Type:      types.EventError,
		Method:    &method,
		Result:    message,
		RelatedID: &callID,
	}
}

// eventResult is the recorded form of a result. Methods that only return an
// error record nothing.
func eventResult(method string, result interface{}) interface{} {
	if secretResults[method] {
		return redacted
	}
	if _, empty := result.(struct{}); empty {
		return nil
	}
	return snapshot(result)
}

// snapshot deep-copies v into a JSON tree of maps, slices and scalars
func snapshot(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var tree interface{}
	if err := codec.Unmarshal(data, &tree); err != nil {
		return string(data)
	}
	return tree
}
