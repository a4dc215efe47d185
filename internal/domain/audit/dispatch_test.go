package audit

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

var errBusiness = errors.New("business rule violated")

func TestDispatchSuccess(t *testing.T) {
	log := NewLog()

	got, err := Dispatch(log, "DeployContainer", map[string]string{"image": "calc"}, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	events := log.Events()
	require.Len(t, events, 2)
	call, result := events[0], events[1]

	assert.Equal(t, types.EventCall, call.Type)
	assert.Equal(t, "DeployContainer", *call.Method)
	assert.Equal(t, map[string]interface{}{"image": "calc"}, call.Params)
	assert.Nil(t, call.RelatedID)

	assert.Equal(t, types.EventResult, result.Type)
	require.NotNil(t, result.RelatedID)
	assert.Equal(t, call.ID, *result.RelatedID)
	assert.Equal(t, json.Number("42"), result.Result)
	assert.NotEqual(t, call.ID, result.ID)
}

func TestDispatchRecordsCopies(t *testing.T) {
	log := NewLog()

	env := map[string]string{"MODE": "fast"}
	ports := []int{9100}
	_, err := Dispatch(log, "DeployContainer", map[string]interface{}{"env": env}, func() ([]int, error) {
		return ports, nil
	})
	require.NoError(t, err)

	env["MODE"] = "slow"
	env["EXTRA"] = "1"
	ports[0] = 1

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, map[string]interface{}{"env": map[string]interface{}{"MODE": "fast"}}, events[0].Params)
	assert.Equal(t, []interface{}{json.Number("9100")}, events[1].Result)
}

func TestDispatchBusinessFailure(t *testing.T) {
	log := NewLog()

	_, err := Dispatch(log, "StopContainer", nil, func() (struct{}, error) {
		return struct{}{}, errBusiness
	})
	assert.True(t, err == errBusiness, "error must be returned unchanged")

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventCall, events[0].Type)
	assert.Equal(t, types.EventError, events[1].Type)
	assert.Equal(t, events[0].ID, *events[1].RelatedID)
	assert.Equal(t, errBusiness.Error(), events[1].Result)
}

func TestDispatchAccessorPassThrough(t *testing.T) {
	log := NewLog()

	got, err := Dispatch(log, "GetContainers", nil, func() ([]string, error) {
		return []string{"a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	got, err = Dispatch(log, "getContainers", nil, func() ([]string, error) {
		return []string{"partial"}, errBusiness
	})
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.Zero(t, log.Len())
}

func TestDispatchTargetUnavailable(t *testing.T) {
	log := NewLog()

	_, err := Dispatch[string](log, "Login", nil, nil)
	assert.ErrorIs(t, err, ErrTargetUnavailable)

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventError, events[1].Type)
	assert.Equal(t, events[0].ID, *events[1].RelatedID)

	_, err = Dispatch[string](log, "GetStats", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, log.Len())
}

func TestDispatchPanic(t *testing.T) {
	log := NewLog()

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = Dispatch(log, "InvokeAction", nil, func() (int, error) {
			panic("boom")
		})
	})

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventError, events[1].Type)
	assert.Equal(t, "panic: boom", events[1].Result)
}

func TestDispatchSecretResult(t *testing.T) {
	log := NewLog()

	token, err := Dispatch(log, "Login", nil, func() (string, error) { return "tok-123", nil })
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, redacted, log.Events()[1].Result)
}

func TestDispatchConcurrentOrdering(t *testing.T) {
	log := NewLog()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = Dispatch(log, "AddUser", i, func() (int, error) {
				if i%2 == 0 {
					return 0, errBusiness
				}
				return i, nil
			})
		}(i)
	}
	wg.Wait()

	events := log.Events()
	require.Len(t, events, 100)

	position := make(map[string]int, len(events))
	for i, e := range events {
		position[e.ID] = i
	}
	for i, e := range events {
		if e.Type == types.EventCall {
			continue
		}
		require.NotNil(t, e.RelatedID)
		callPos, ok := position[*e.RelatedID]
		require.True(t, ok)
		assert.Less(t, callPos, i)
	}
}

func TestLogSubscribe(t *testing.T) {
	log := NewLog()
	events, cancel := log.Subscribe(4)

	log.Append(types.Event{Type: types.EventCall})
	e := <-events
	assert.Equal(t, types.EventCall, e.Type)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)

	log.Append(types.Event{Type: types.EventCall})
	assert.Equal(t, 2, log.Len())
	assert.Len(t, log.Since(1), 1)
	assert.Empty(t, log.Since(5))
}

func TestLogSubscriberDoesNotBlock(t *testing.T) {
	log := NewLog()
	_, cancel := log.Subscribe(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		log.Append(types.Event{Type: types.EventCall})
	}
	assert.Equal(t, 10, log.Len())
}

func TestLogMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	log := NewLog().WithMetrics(metrics)

	_, _ = Dispatch(log, "StopContainer", nil, func() (struct{}, error) { return struct{}{}, errBusiness })

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "platform_audit_events_total" {
			found = true
			assert.Len(t, f.GetMetric(), 2)
		}
	}
	assert.True(t, found)
}
