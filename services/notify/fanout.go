package notifysvc

import (
	"context"
	"fmt"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
)

// Fanout forwards every notification to each of its notifiers. A panicking notifier does not
// prevent the others from being notified.
type Fanout struct {
	notifiers []deliverable.Notifier
	logger    core.Logger
}

var _ deliverable.Notifier = (*Fanout)(nil)

func NewFanout(logger core.Logger, notifiers ...deliverable.Notifier) *Fanout {
	return &Fanout{notifiers: notifiers, logger: logger}
}

func (f *Fanout) Notify(ctx context.Context, n deliverable.Notification) {
	for _, notifier := range f.notifiers {
		f.notify(ctx, notifier, n)
	}
}

func (f *Fanout) notify(ctx context.Context, notifier deliverable.Notifier, n deliverable.Notification) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error(fmt.Sprintf("notifier %T panicked on %s: %v", notifier, n.Event, r), n)
		}
	}()
	notifier.Notify(ctx, n)
}

// New wires the notifiers enabled by conf: emails always, the webhook when a URL is configured.
func New(conf *core.Config, dir deliverable.Directory, mailSvc core.EmailService, logger core.Logger) *Fanout {
	notifiers := []deliverable.Notifier{NewEmailNotifier(dir, mailSvc, logger)}
	if conf.Notify.WebhookURL != "" {
		notifiers = append(notifiers, NewWebhookNotifier(conf, logger))
	}
	return NewFanout(logger, notifiers...)
}
