package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	sink := Multi(a, nil, b)

	sink.Emit(model.Event{Type: model.EventRenewalConfirmed})
	sink.Emit(model.Event{Type: model.EventStorageExtended})

	assert.Equal(t, []model.EventType{model.EventRenewalConfirmed, model.EventStorageExtended}, a.Types())
	assert.Equal(t, a.Events(), b.Events())
}

func TestRecorder_Of(t *testing.T) {
	r := &Recorder{}
	r.Emit(model.Event{Type: model.EventRenewalState, State: "Polling"})
	r.Emit(model.Event{Type: model.EventRenewalConfirmed})
	r.Emit(model.Event{Type: model.EventRenewalState, State: "Confirmed"})

	states := r.Of(model.EventRenewalState)
	require.Len(t, states, 2)
	assert.Equal(t, "Confirmed", states[1].State)
}

func TestOr(t *testing.T) {
	assert.Equal(t, Discard, Or(nil))
	r := &Recorder{}
	assert.Same(t, r, Or(r))
	assert.NotPanics(t, func() { Or(nil).Emit(model.Event{}) })
}

func TestFunc(t *testing.T) {
	var got model.EventType
	Func(func(e model.Event) { got = e.Type }).Emit(model.Event{Type: model.EventContentFailed})
	assert.Equal(t, model.EventContentFailed, got)
}

func TestLogSink_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLogger(logging.LevelInfo)
	log.SetOutput(&buf)
	sink := NewLogSink(log)

	sink.Emit(model.Event{Type: model.EventConfirmAttempt})
	sink.Emit(model.Event{Type: model.EventRenewalFailed, Error: "boom", ErrorCode: "E_SUBMIT_FAILED", LeaseID: "0xl"})
	sink.Emit(model.Event{Type: model.EventStorageExtended, Details: map[string]any{"epochs_added": 5}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var failed logging.LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &failed))
	assert.Equal(t, logging.LevelWarn, failed.Level)
	assert.Equal(t, "E_SUBMIT_FAILED", failed.Fields["error_code"])
	assert.Equal(t, "0xl", failed.Fields["lease_id"])
	assert.Equal(t, "events", failed.Fields["component"])

	var ext logging.LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ext))
	assert.Equal(t, float64(5), ext.Fields["epochs_added"])
}
