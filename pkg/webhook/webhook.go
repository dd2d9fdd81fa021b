// Package webhook delivers leasekeeper lifecycle events to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Payload is the JSON body posted to a hook.
type Payload struct {
	DeliveryID string          `json:"delivery_id"`
	Event      model.EventType `json:"event"`
	Timestamp  string          `json:"timestamp"`
	RunID      string          `json:"run_id,omitempty"`
	LeaseID    string          `json:"lease_id,omitempty"`
	ObjectID   string          `json:"object_id,omitempty"`
	Digest     string          `json:"digest,omitempty"`
	State      string          `json:"state,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Details    map[string]any  `json:"details,omitempty"`
}

// HookConfig represents a single webhook configuration.
// Events entries match exactly, by "prefix.*", or "*" for everything.
type HookConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Secret  string        `json:"secret,omitempty" yaml:"secret,omitempty"`
	Events  []string      `json:"events" yaml:"events"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Enabled bool          `json:"enabled" yaml:"enabled"`
}

// Config represents the webhook configuration.
type Config struct {
	Hooks          []HookConfig  `json:"hooks" yaml:"hooks"`
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	MaxRetries     int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay" yaml:"retry_delay"`
	AsyncQueueSize int           `json:"async_queue_size" yaml:"async_queue_size"`
}

// DefaultConfig returns the default webhook configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		AsyncQueueSize: 100,
	}
}

// Client handles sending webhook notifications.
type Client struct {
	config *Config
	http   *http.Client
	log    *logging.Logger
	queue  chan *job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

type job struct {
	payload Payload
	hook    HookConfig
}

// NewClient creates a new webhook client. A nil logger uses the process default.
func NewClient(cfg *Config, log *logging.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	size := cfg.AsyncQueueSize
	if size <= 0 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    logging.OrDefault(log).Named("webhook"),
		queue:  make(chan *job, size),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Enabled {
		c.start()
	}
	return c
}

func (c *Client) start() {
	c.once.Do(func() {
		c.wg.Add(1)
		go c.worker()
	})
}

func (c *Client) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			for len(c.queue) > 0 {
				c.send(<-c.queue)
			}
			return
		case j := <-c.queue:
			c.send(j)
		}
	}
}

// Emit queues the event for background delivery. It never blocks; a full
// queue drops the event with a warning.
func (c *Client) Emit(e model.Event) {
	_ = c.Send(e, true)
}

// Send delivers an event to every matching hook.
// If async is true, the event is queued for background sending.
func (c *Client) Send(e model.Event, async bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.config.Enabled || c.closed {
		return nil
	}

	var hooks []HookConfig
	for _, hook := range c.config.Hooks {
		if hook.Enabled && matchesEvent(hook, e.Type) {
			hooks = append(hooks, hook)
		}
	}
	if len(hooks) == 0 {
		return nil
	}

	p := newPayload(e)

	if async {
		for _, hook := range hooks {
			select {
			case c.queue <- &job{payload: p, hook: hook}:
			default:
				c.log.Warn("webhook queue full, dropping event", map[string]any{"event": string(e.Type)})
			}
		}
		return nil
	}

	var lastErr error
	for _, hook := range hooks {
		if err := c.sendSync(&job{payload: p, hook: hook}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func newPayload(e model.Event) Payload {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Payload{
		DeliveryID: uuid.New().String(),
		Event:      e.Type,
		Timestamp:  ts.UTC().Format(time.RFC3339),
		RunID:      e.RunID,
		LeaseID:    e.LeaseID,
		ObjectID:   string(e.ObjectID),
		Digest:     string(e.Digest),
		State:      e.State,
		Error:      e.Error,
		ErrorCode:  e.ErrorCode,
		Details:    e.Details,
	}
}

func (c *Client) send(j *job) {
	if err := c.sendSync(j); err != nil {
		c.log.WarnErr("webhook delivery failed", err, map[string]any{
			"event": string(j.payload.Event),
			"url":   j.hook.URL,
		})
	}
}

// sendSync posts one payload with retries.
func (c *Client) sendSync(j *job) error {
	body, err := json.Marshal(j.payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		lastErr = c.post(j, body)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) post(j *job, body []byte) error {
	ctx := context.Background()
	if j.hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.hook.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "leasekeeper-webhook/1.0")
	req.Header.Set("X-Leasekeeper-Event", string(j.payload.Event))
	req.Header.Set("X-Leasekeeper-Delivery", j.payload.DeliveryID)
	if j.hook.Secret != "" {
		req.Header.Set("X-Leasekeeper-Signature", Sign(body, j.hook.Secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(hook HookConfig, t model.EventType) bool {
	for _, e := range hook.Events {
		switch {
		case e == "*" || e == string(t):
			return true
		case strings.HasSuffix(e, ".*") && strings.HasPrefix(string(t), strings.TrimSuffix(e, "*")):
			return true
		}
	}
	return false
}

// Close drains queued deliveries and stops the worker.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
