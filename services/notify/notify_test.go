package notifysvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
	emailsvc "github.com/scolab/backend/services/email"
	"github.com/scolab/backend/storage/database/memdb"
	testutil "github.com/scolab/backend/tests"
)

type fixture struct {
	conf     *core.Config
	dir      *memdb.Directory
	teacher  user.User
	members  []user.User
	notifier *EmailNotifier
	d        deliverable.Deliverable
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NopLogger{}
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	dir := memdb.NewDirectory(memdb.Open())
	teacher := dir.AddUser(testutil.NewUser("Teacher", user.RoleTeacher))
	s1 := dir.AddUser(testutil.NewUser("Student One", user.RoleStudent))
	s2 := dir.AddUser(testutil.NewUser("Student Two", user.RoleStudent))
	noMail := testutil.NewUser("No Mail", user.RoleStudent)
	noMail.Email = ""
	noMail = dir.AddUser(noMail)

	due := time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC)
	at := due.Add(time.Hour)
	return fixture{
		conf:     conf,
		dir:      dir,
		teacher:  teacher,
		members:  []user.User{s1, s2},
		notifier: NewEmailNotifier(dir, emailsvc.NewConsoleServiceMock(conf, logger), logger),
		d: deliverable.Deliverable{
			ID:        "d1",
			ProjectID: dir.AddProject(teacher.ID),
			GroupID:   dir.AddGroup(s1.ID, s2.ID, noMail.ID),
			Name:      "Final report",
			DueAt:     due,
			Status:    deliverable.StatusSubmitted,
			File: &deliverable.SubmittedFile{
				Filename: "report.pdf", Size: 2048, Kind: deliverable.KindPDF, UploadedAt: at, StorageRef: "d1/x-report.pdf",
			},
			SubmittedAt: &at,
		},
	}
}

func recipients(msg core.EmailMessage) []string {
	out := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		out = append(out, a.Address)
	}
	return out
}

func TestEmailNotifier_Deliver(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	occurred := *f.d.SubmittedAt

	graded := f.d
	graded.Status = deliverable.StatusGraded
	rejected := f.d
	rejected.Status = deliverable.StatusRejected

	tests := []struct {
		name        string
		n           deliverable.Notification
		wantTo      []string
		wantSubject string
		wantText    []string
	}{
		{
			name:        "submitted, to the project teacher",
			n:           deliverable.Notification{Event: deliverable.NotifySubmitted, Deliverable: f.d, Late: true, OccurredAt: occurred},
			wantTo:      []string{f.teacher.Email},
			wantSubject: "New submission: Final report",
			wantText: []string{
				`"Final report"`,
				"report.pdf (2048 bytes)",
				"(late, due " + f.d.DueAt.Format(timeLayout) + ")",
				f.conf.FrontendBaseURL + "/deliverables/d1",
			},
		},
		{
			name: "graded, to the group members",
			n: deliverable.Notification{
				Event:       deliverable.NotifyGraded,
				Deliverable: graded,
				Evaluation:  &deliverable.EvaluationRecord{Seq: 1, Note: 14.5, Comment: "Clear and well argued."},
				OccurredAt:  occurred,
			},
			wantTo:      []string{f.members[0].Email, f.members[1].Email},
			wantSubject: "Your deliverable Final report has been evaluated",
			wantText:    []string{"Note: 14.5/20 (Good)", "Comment: Clear and well argued."},
		},
		{
			name:        "rejected, to the group members",
			n:           deliverable.Notification{Event: deliverable.NotifyRejected, Deliverable: rejected, OccurredAt: occurred},
			wantTo:      []string{f.members[0].Email, f.members[1].Email},
			wantSubject: "Your deliverable Final report has been rejected",
			wantText:    []string{"has been rejected"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()
			require.NoError(t, f.notifier.Deliver(ctx, tt.n))

			sent := emailsvc.Sent()
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.ElementsMatch(t, tt.wantTo, recipients(msg))
			assert.Equal(t, tt.wantSubject, msg.Subject)
			assert.NotEmpty(t, msg.HTMLContent)
			for _, want := range tt.wantText {
				assert.Contains(t, msg.TextContent, want)
			}
		})
	}
}

func TestEmailNotifier_Deliver_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// unknown project
	d := f.d
	d.ProjectID = "unknown"
	err := f.notifier.Deliver(ctx, deliverable.Notification{Event: deliverable.NotifySubmitted, Deliverable: d})
	assert.ErrorIs(t, err, user.ErrNotFound)

	// unknown event
	err = f.notifier.Deliver(ctx, deliverable.Notification{Event: "ARCHIVED", Deliverable: f.d})
	assert.Error(t, err)

	// empty group: nothing to send
	d = f.d
	d.GroupID = f.dir.AddGroup()
	err = f.notifier.Deliver(ctx, deliverable.Notification{Event: deliverable.NotifyRejected, Deliverable: d})
	assert.NoError(t, err)
	assert.Empty(t, emailsvc.Sent())
}

func TestWebhookNotifier_Deliver(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookPayload
		status   = http.StatusNoContent
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p webhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		received = append(received, p)
		code := status
		mu.Unlock()
		w.WriteHeader(code)
	}))
	defer srv.Close()

	conf := core.NewTestConfig()
	conf.Notify.WebhookURL = srv.URL
	wn := NewWebhookNotifier(conf, testutil.NopLogger{})

	at := time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)
	n := deliverable.Notification{
		Event:       deliverable.NotifyGraded,
		Deliverable: deliverable.Deliverable{ID: "d1", ProjectID: "p1", GroupID: "g1", Name: "Report", Status: deliverable.StatusGraded},
		Actors:      deliverable.Actors{SubmitterID: "s1", EvaluatorID: "t1"},
		Evaluation:  &deliverable.EvaluationRecord{Seq: 2, Note: 17, Comment: "Excellent analysis."},
		OccurredAt:  at,
	}
	require.NoError(t, wn.Deliver(context.Background(), n))

	mu.Lock()
	require.Len(t, received, 1)
	got := received[0]
	status = http.StatusInternalServerError
	mu.Unlock()

	assert.Equal(t, deliverable.NotifyGraded, got.Event)
	assert.Equal(t, "d1", got.DeliverableID)
	assert.Equal(t, deliverable.StatusGraded, got.Status)
	assert.Equal(t, n.Actors, got.Actors)
	assert.True(t, at.Equal(got.OccurredAt))
	require.NotNil(t, got.Evaluation)
	assert.Equal(t, webhookEvaluation{Seq: 2, Note: 17, Appreciation: "Very good", Comment: "Excellent analysis."}, *got.Evaluation)

	assert.Error(t, wn.Deliver(context.Background(), n))
}

func TestFanout(t *testing.T) {
	spy := &testutil.NotifierSpy{}
	panicking := deliverable.NotifierFunc(func(context.Context, deliverable.Notification) { panic("boom") })
	fan := NewFanout(testutil.NopLogger{}, panicking, spy)

	assert.NotPanics(t, func() {
		fan.Notify(context.Background(), deliverable.Notification{Event: deliverable.NotifyRejected})
	})
	assert.Equal(t, 1, spy.Count(deliverable.NotifyRejected))
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	dir := memdb.NewDirectory(memdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})

	conf.Notify.WebhookURL = ""
	assert.Len(t, New(conf, dir, mailSvc, testutil.NopLogger{}).notifiers, 1)

	conf.Notify.WebhookURL = "http://localhost:9999/hooks"
	assert.Len(t, New(conf, dir, mailSvc, testutil.NopLogger{}).notifiers, 2)
}
