package notifysvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
)

type webhookPayload struct {
	Event         deliverable.NotificationEvent `json:"event"`
	DeliverableID string                        `json:"deliverable_id"`
	ProjectID     string                        `json:"project_id"`
	GroupID       string                        `json:"group_id"`
	Name          string                        `json:"name"`
	Status        deliverable.Status            `json:"status"`
	Late          bool                          `json:"late"`
	Actors        deliverable.Actors            `json:"actors"`
	Evaluation    *webhookEvaluation            `json:"evaluation,omitempty"`
	OccurredAt    time.Time                     `json:"occurred_at"`
}

type webhookEvaluation struct {
	Seq          int     `json:"seq"`
	Note         float64 `json:"note"`
	Appreciation string  `json:"appreciation"`
	Comment      string  `json:"comment"`
}

func newWebhookPayload(n deliverable.Notification) webhookPayload {
	p := webhookPayload{
		Event:         n.Event,
		DeliverableID: n.Deliverable.ID,
		ProjectID:     n.Deliverable.ProjectID,
		GroupID:       n.Deliverable.GroupID,
		Name:          n.Deliverable.Name,
		Status:        n.Deliverable.Status,
		Late:          n.Late,
		Actors:        n.Actors,
		OccurredAt:    n.OccurredAt.UTC(),
	}
	if ev := n.Evaluation; ev != nil {
		p.Evaluation = &webhookEvaluation{
			Seq:          ev.Seq,
			Note:         ev.Note,
			Appreciation: ev.Appreciation(),
			Comment:      ev.Comment,
		}
	}
	return p
}

// WebhookNotifier POSTs every notification as JSON to a configured URL.
type WebhookNotifier struct {
	url    string
	client *resty.Client
	logger core.Logger
}

var _ deliverable.Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(conf *core.Config, logger core.Logger) *WebhookNotifier {
	timeout := conf.Notify.WebhookTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", conf.AppName+"/"+conf.Build)
	return &WebhookNotifier{url: conf.Notify.WebhookURL, client: client, logger: logger}
}

func (wn *WebhookNotifier) Notify(ctx context.Context, n deliverable.Notification) {
	go func() {
		if err := wn.Deliver(ctx, n); err != nil {
			wn.logger.Error(fmt.Sprintf("posting %s notification for deliverable %s: %v", n.Event, n.Deliverable.ID, err), err, n)
		}
	}()
}

// Deliver POSTs n and waits for the response.
func (wn *WebhookNotifier) Deliver(ctx context.Context, n deliverable.Notification) error {
	res, err := wn.client.R().
		SetContext(ctx).
		SetBody(newWebhookPayload(n)).
		Post(wn.url)
	if err != nil {
		return errors.Wrap(err, "posting webhook")
	}
	if res.StatusCode() >= http.StatusBadRequest {
		return errors.Errorf("webhook responded %d: %s", res.StatusCode(), res.String())
	}
	return nil
}
