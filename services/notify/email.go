package notifysvc

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"

	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

const timeLayout = "02 Jan 2006 15:04 MST"

var templateNames = map[deliverable.NotificationEvent]string{
	deliverable.NotifySubmitted: "deliverable_submitted",
	deliverable.NotifyGraded:    "deliverable_graded",
	deliverable.NotifyRejected:  "deliverable_rejected",
}

var subjects = map[deliverable.NotificationEvent]string{
	deliverable.NotifySubmitted: "New submission: %s",
	deliverable.NotifyGraded:    "Your deliverable %s has been evaluated",
	deliverable.NotifyRejected:  "Your deliverable %s has been rejected",
}

// emailData is the data the deliverable email templates are executed with.
type emailData struct {
	ID           string
	Name         string
	Filename     string
	Size         int64
	OccurredAt   string
	Late         bool
	DueAt        string
	Note         string
	Appreciation string
	Comment      string
}

func newEmailData(n deliverable.Notification) emailData {
	d := n.Deliverable
	data := emailData{
		ID:         d.ID,
		Name:       d.Name,
		OccurredAt: n.OccurredAt.UTC().Format(timeLayout),
		Late:       n.Late,
		DueAt:      d.DueAt.UTC().Format(timeLayout),
	}
	if d.File != nil {
		data.Filename = d.File.Filename
		data.Size = d.File.Size
	}
	if ev := n.Evaluation; ev != nil {
		data.Note = strconv.FormatFloat(ev.Note, 'f', -1, 64)
		data.Appreciation = ev.Appreciation()
		data.Comment = ev.Comment
	}
	return data
}

// EmailNotifier emails the project teacher on submission, and the group members on evaluation or rejection.
type EmailNotifier struct {
	dir    deliverable.Directory
	mail   core.EmailService
	logger core.Logger
}

var _ deliverable.Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(dir deliverable.Directory, mailSvc core.EmailService, logger core.Logger) *EmailNotifier {
	return &EmailNotifier{dir: dir, mail: mailSvc, logger: logger}
}

func (en *EmailNotifier) Notify(ctx context.Context, n deliverable.Notification) {
	go func() {
		if err := en.Deliver(ctx, n); err != nil {
			en.logger.Error(fmt.Sprintf("emailing %s notification for deliverable %s: %v", n.Event, n.Deliverable.ID, err), err, n)
		}
	}()
}

// Deliver resolves the recipients of n and hands the email over to the EmailService.
func (en *EmailNotifier) Deliver(ctx context.Context, n deliverable.Notification) error {
	tmplName, ok := templateNames[n.Event]
	if !ok {
		return errors.Errorf("unknown notification event %q", n.Event)
	}
	recipients, err := en.recipients(ctx, n)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		en.logger.Warn(fmt.Sprintf("no recipient for %s notification of deliverable %s", n.Event, n.Deliverable.ID), n)
		return nil
	}

	en.mail.SendMessages(&core.EmailMessage{
		To:           recipients,
		Subject:      fmt.Sprintf(subjects[n.Event], n.Deliverable.Name),
		TemplateName: tmplName,
		TemplateData: newEmailData(n),
	})
	return nil
}

func (en *EmailNotifier) recipients(ctx context.Context, n deliverable.Notification) ([]mail.Address, error) {
	var users []user.User
	switch n.Event {
	case deliverable.NotifySubmitted:
		teacher, err := en.dir.ProjectTeacher(ctx, n.Deliverable.ProjectID)
		if err != nil {
			return nil, errors.Wrap(err, "getting project teacher")
		}
		users = append(users, teacher)
	default:
		members, err := en.dir.GroupMembers(ctx, n.Deliverable.GroupID)
		if err != nil {
			return nil, errors.Wrap(err, "getting group members")
		}
		users = members
	}

	addrs := make([]mail.Address, 0, len(users))
	for _, usr := range users {
		if addr, ok := usr.Address(); ok {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}

