package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// Webhook posts one JSON payload per event. Delivery is fire-and-forget:
// a failed post is reported to the caller and the next poll will produce a
// fresh event anyway, so there is no retry queue.
type Webhook struct {
	client *resty.Client
	url    string
}

var _ Sink = (*Webhook)(nil)

func NewWebhook(url string) *Webhook {
	return &Webhook{
		client: resty.New().SetTimeout(15 * time.Second),
		url:    url,
	}
}

// webhookPayload is the wire shape consumed by receivers. Change records
// marshal with their `path`/`type`/`before`/`after`/`summary`/`description`
// fields.
type webhookPayload struct {
	Target   string               `json:"target"`
	Revision string               `json:"revision"`
	Taken    time.Time            `json:"taken"`
	Stats    structdiff.Stats     `json:"stats"`
	Changes  []*structdiff.Change `json:"changes"`
}

func (w *Webhook) Publish(ctx context.Context, ev Event) error {
	payload := webhookPayload{
		Target:   ev.Target,
		Revision: ev.Revision.String(),
		Taken:    ev.Taken,
		Stats:    ev.Stats,
		Changes:  ev.Changes,
	}
	res, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("webhook answered %s", res.Status())
	}
	return nil
}
