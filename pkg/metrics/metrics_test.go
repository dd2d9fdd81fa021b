package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/pkg/model"
)

func TestEmit_CountsOutcomes(t *testing.T) {
	r := NewRegistry()

	r.Emit(model.Event{Type: model.EventRenewalConfirmed})
	r.Emit(model.Event{Type: model.EventRenewalConfirmed})
	r.Emit(model.Event{Type: model.EventRenewalPartial})
	r.Emit(model.Event{Type: model.EventRenewalState, State: "Polling"})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("renewal", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("renewal", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("renewal.state")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.outcomes.WithLabelValues("renewal", "state")))
}

func TestEmit_StorageExtended(t *testing.T) {
	r := NewRegistry()
	r.Emit(model.Event{
		Type:    model.EventStorageExtended,
		Details: map[string]any{"epochs_added": uint64(5)},
	})
	assert.Equal(t, 5.0, testutil.ToFloat64(r.epochsAdded))
}

func TestEmit_ConfirmAttempt(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		r.Emit(model.Event{Type: model.EventConfirmAttempt, Details: map[string]any{"operation": "renewal"}})
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(r.attempts.WithLabelValues("renewal")))
}

func TestEmit_ConfirmWait(t *testing.T) {
	r := NewRegistry()
	r.Emit(model.Event{Type: model.EventContentConfirmed, Details: map[string]any{"waited_seconds": 6.0}})
	assert.Equal(t, 1, testutil.CollectAndCount(r.confirmWait))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.Emit(model.Event{Type: model.EventStorageDeleted})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `leasekeeper_operation_outcomes_total{operation="storage",outcome="deleted"} 1`)
}
