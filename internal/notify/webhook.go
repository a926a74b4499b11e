// Package notify delivers engine events to an external webhook.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	EventSettlement  = "settlement.completed"
	EventPeriodClose = "rating_period.closed"
)

type Event[T any] struct {
	Type   string    `json:"type"`
	SentAt time.Time `json:"sent_at"`
	Data   T         `json:"data"`
}

// Webhook posts events as JSON to a configured URL. Delivery happens in the
// background and failures are only logged. Without a URL every event is
// dropped.
type Webhook struct {
	url    string
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewWebhook(cfg *config.Config, logger zerolog.Logger) *Webhook {
	return &Webhook{
		url: cfg.WebhookURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.NotificationTimeout,
			WriteTimeout:        constants.NotificationTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger.With().Str("component", "webhook").Logger(),
	}
}

func (w *Webhook) Enabled() bool {
	return w.url != ""
}

func (w *Webhook) SettlementCompleted(_ context.Context, result *domain.SettlementResult) {
	if !w.Enabled() {
		return
	}
	go w.deliver(EventSettlement, func(ctx context.Context) error {
		return doPost(ctx, w, Event[*domain.SettlementResult]{Type: EventSettlement, SentAt: time.Now().UTC(), Data: result})
	})
}

func (w *Webhook) PeriodClosed(_ context.Context, result *domain.PeriodCloseResult) {
	if !w.Enabled() {
		return
	}
	go w.deliver(EventPeriodClose, func(ctx context.Context) error {
		return doPost(ctx, w, Event[*domain.PeriodCloseResult]{Type: EventPeriodClose, SentAt: time.Now().UTC(), Data: result})
	})
}

func (w *Webhook) deliver(event string, send func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.NotificationTimeout)
	defer cancel()

	start := time.Now()
	if err := send(ctx); err != nil {
		w.logger.Warn().Err(err).Str("event", event).Msg("failed to deliver webhook")
		return
	}
	w.logger.Debug().Str("event", event).Dur("duration", time.Since(start)).Msg("webhook delivered")
}

func doPost[T any](ctx context.Context, w *Webhook, payload T) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(w.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := w.client.DoDeadline(req, resp, deadline); err != nil {
			return err
		}
	} else {
		if err := w.client.Do(req, resp); err != nil {
			return err
		}
	}

	if code := resp.StatusCode(); code < fasthttp.StatusOK || code >= fasthttp.StatusMultipleChoices {
		return fmt.Errorf("webhook error: %d", code)
	}
	return nil
}
