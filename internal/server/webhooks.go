package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"donortrack/internal/config"
	"donortrack/internal/domain"
	"donortrack/internal/metrics"
	"donortrack/internal/store"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookOptions configure the activity forwarder started by StartWebhooks.
type WebhookOptions struct {
	Store    *store.Store
	Hooks    []config.WebhookConfig
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration
}

type webhookDispatcher struct {
	store    *store.Store
	hooks    []config.WebhookConfig
	log      *zap.Logger
	metrics  *metrics.Metrics
	client   *http.Client
	interval time.Duration
	// cursors hold the last delivered activity id per hook index.
	cursors map[int]int64
}

// StartWebhooks forwards new activity entries to every enabled hook until ctx
// is done. Entries logged before the call are not replayed. The returned
// channel closes when the dispatcher has stopped.
func StartWebhooks(ctx context.Context, opts WebhookOptions) <-chan struct{} {
	done := make(chan struct{})
	hooks := enabledHooks(opts.Hooks)
	if opts.Store == nil || len(hooks) == 0 {
		close(done)
		return done
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	d := &webhookDispatcher{
		store:    opts.Store,
		hooks:    hooks,
		log:      log.Named("webhooks"),
		metrics:  opts.Metrics,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		interval: interval,
		cursors:  make(map[int]int64),
	}
	start, err := d.store.Activity.LatestID(ctx)
	if err != nil {
		d.log.Warn("init cursor failed", zap.Error(err))
	}
	for i := range hooks {
		d.cursors[i] = start
	}
	go func() {
		defer close(done)
		d.run(ctx)
	}()
	return done
}

func enabledHooks(hooks []config.WebhookConfig) []config.WebhookConfig {
	var res []config.WebhookConfig
	for _, h := range hooks {
		if h.Enabled != nil && !*h.Enabled {
			continue
		}
		if strings.TrimSpace(h.URL) == "" {
			continue
		}
		res = append(res, h)
	}
	return res
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, hook := range d.hooks {
				d.dispatch(ctx, i, hook)
			}
		}
	}
}

func (d *webhookDispatcher) dispatch(ctx context.Context, idx int, hook config.WebhookConfig) {
	entries, err := d.store.Activity.After(ctx, d.cursors[idx], defaultWebhookBatch)
	if err != nil {
		if ctx.Err() == nil {
			d.log.Warn("fetch activity failed", zap.Error(err))
		}
		return
	}
	filter := newEventFilter(hook.Events)
	for _, a := range entries {
		if !filter.match(a.Type) {
			d.cursors[idx] = a.ID
			continue
		}
		err := d.post(ctx, hook, a)
		if d.metrics != nil {
			d.metrics.WebhookDelivery(err == nil)
		}
		if err != nil {
			// retried from the same cursor on the next tick
			d.log.Warn("delivery failed", zap.String("url", hook.URL), zap.Int64("activity_id", a.ID), zap.Error(err))
			return
		}
		d.cursors[idx] = a.ID
	}
}

type webhookPayload struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *webhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, a domain.Activity) error {
	payload := json.RawMessage("{}")
	if a.Payload != "" && json.Valid([]byte(a.Payload)) {
		payload = json.RawMessage(a.Payload)
	}
	data, err := json.Marshal(webhookPayload{
		ID:         a.ID,
		Type:       a.Type,
		EntityKind: a.EntityKind,
		EntityID:   a.EntityID,
		ActorID:    a.ActorID,
		TS:         a.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Donortrack-Event", a.Type)
	req.Header.Set("X-Donortrack-Delivery", uuid.NewString())
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Donortrack-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(types []string) eventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if key := strings.TrimSpace(t); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(typ string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[typ]
	return ok
}
