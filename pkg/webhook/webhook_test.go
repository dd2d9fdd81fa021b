package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

func hookConfig(url string, events ...string) *Config {
	return &Config{
		Enabled:        true,
		MaxRetries:     1,
		RetryDelay:     10 * time.Millisecond,
		AsyncQueueSize: 10,
		Hooks:          []HookConfig{{URL: url, Events: events, Enabled: true}},
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 100, cfg.AsyncQueueSize)
}

func TestClientSendSync(t *testing.T) {
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, string(model.EventRenewalConfirmed), r.Header.Get("X-Leasekeeper-Event"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(hookConfig(server.URL, "renewal.*"), logging.Nop())
	defer client.Close()

	err := client.Send(model.Event{
		Type:    model.EventRenewalConfirmed,
		LeaseID: "0xlease",
		Digest:  "digest-1",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, model.EventRenewalConfirmed, got.Event)
	assert.Equal(t, "0xlease", got.LeaseID)
	assert.NotEmpty(t, got.DeliveryID)
	assert.NotEmpty(t, got.Timestamp)
}

func TestClientSignature(t *testing.T) {
	secret := "test-secret-key"
	var sig string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get("X-Leasekeeper-Signature")
		var p Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		body, _ = json.Marshal(p)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := hookConfig(server.URL, "*")
	cfg.Hooks[0].Secret = secret
	client := NewClient(cfg, logging.Nop())
	defer client.Close()

	require.NoError(t, client.Send(model.Event{Type: model.EventStorageExtended}, false))
	assert.Equal(t, Sign(body, secret), sig)
}

func TestClientEmitAsync(t *testing.T) {
	calls := make(chan struct{}, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(hookConfig(server.URL, "content.*"), logging.Nop())
	defer client.Close()

	client.Emit(model.Event{Type: model.EventContentConfirmed})

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("async webhook not received within timeout")
	}
}

func TestClientRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := hookConfig(server.URL, "*")
	cfg.MaxRetries = 3
	client := NewClient(cfg, logging.Nop())
	defer client.Close()

	require.NoError(t, client.Send(model.Event{Type: model.EventRenewalFailed}, false))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClientRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(hookConfig(server.URL, "*"), logging.Nop())
	defer client.Close()

	err := client.Send(model.Event{Type: model.EventRenewalFailed}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
}

func TestClientDisabled(t *testing.T) {
	var called int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.StoreInt32(&called, 1)
	}))
	defer server.Close()

	cfg := hookConfig(server.URL, "*")
	cfg.Enabled = false
	client := NewClient(cfg, logging.Nop())
	defer client.Close()

	require.NoError(t, client.Send(model.Event{Type: model.EventRenewalConfirmed}, false))
	assert.Zero(t, atomic.LoadInt32(&called))
}

func TestMatchesEvent(t *testing.T) {
	hook := HookConfig{Events: []string{"renewal.*", "storage.deleted"}}

	assert.True(t, matchesEvent(hook, model.EventRenewalConfirmed))
	assert.True(t, matchesEvent(hook, model.EventRenewalFailed))
	assert.True(t, matchesEvent(hook, model.EventStorageDeleted))
	assert.False(t, matchesEvent(hook, model.EventStorageExtended))
	assert.False(t, matchesEvent(hook, model.EventContentConfirmed))
	assert.True(t, matchesEvent(HookConfig{Events: []string{"*"}}, model.EventConfirmAttempt))
}

func TestCloseIdempotent(t *testing.T) {
	client := NewClient(hookConfig("http://127.0.0.1:0", "*"), logging.Nop())
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.NoError(t, client.Send(model.Event{Type: model.EventRenewalConfirmed}, false))
}
