package deliverable

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/user"
)

var nowFunc = time.Now // mockable

// maxTransitionRetries is the number of internal retries after a version conflict.
const maxTransitionRetries = 1

type (
	Repository interface {
		EvaluationReader

		CreateDeliverable(ctx context.Context, d Deliverable) (Deliverable, error)
		// GetDeliverable returns ErrNotFound if there is no deliverable with this id.
		GetDeliverable(ctx context.Context, id string) (Deliverable, error)
		// QueryDeliverables applies AND operation on available QueryFilter fields.
		QueryDeliverables(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Deliverable, error)
		// SaveTransition persists d if the stored version still equals d.Version, or returns
		// ErrVersionConflict. The returned Deliverable carries the bumped version.
		// rec, when not nil, is appended to the ledger in the same atomic write and its Seq is set.
		SaveTransition(ctx context.Context, d Deliverable, rec *EvaluationRecord) (Deliverable, error)
	}

	// Directory resolves the people concerned by a deliverable.
	Directory interface {
		ProjectTeacher(ctx context.Context, projectID string) (user.User, error)
		GroupMembers(ctx context.Context, groupID string) ([]user.User, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nd NewDeliverable) (View, error)
		Get(ctx context.Context, id string) (View, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]View, error)
		Late(ctx context.Context, projectID string) ([]View, error)
		History(ctx context.Context, id string) (iter.Seq2[EvaluationRecord, error], error)
		OpenFile(ctx context.Context, id string) (SubmittedFile, io.ReadCloser, error)
		Submit(ctx context.Context, id string, fh FileHandle, submitter Submitter) (View, error)
		BeginCorrection(ctx context.Context, id string, evaluator Evaluator) (View, error)
		Evaluate(ctx context.Context, id string, ne NewEvaluation, evaluator Evaluator) (View, error)
		Reject(ctx context.Context, id string, evaluator Evaluator) (View, error)
	}

	Service struct {
		repo       Repository
		dir        Directory
		files      FileStorage
		notifier   Notifier
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		policy     DeadlinePolicy

		transferTimeout time.Duration
		historyPageSize int
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	repo Repository,
	dir Directory,
	files FileStorage,
	notifier Notifier,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) *Service {
	transferTimeout := conf.Deliverable.TransferTimeout
	if transferTimeout <= 0 {
		transferTimeout = time.Minute
	}
	return &Service{
		repo:            repo,
		dir:             dir,
		files:           files,
		notifier:        notifier,
		logger:          logger,
		validate:        validate,
		translator:      translator,
		policy:          NewDeadlinePolicy(func() time.Time { return nowFunc() }),
		transferTimeout: transferTimeout,
		historyPageSize: conf.Deliverable.HistoryPageSize,
	}
}

func (svc *Service) Create(ctx context.Context, nd NewDeliverable) (View, error) {
	if err := nd.Validate(svc.validate, svc.translator); err != nil {
		return View{}, err
	}
	now := svc.policy.Now().UTC()
	d, err := svc.repo.CreateDeliverable(ctx, Deliverable{
		ProjectID:   nd.ProjectID,
		GroupID:     nd.GroupID,
		Name:        nd.Name,
		Description: nd.Description,
		DueAt:       nd.DueAt.UTC(),
		Status:      StatusToSubmit,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return View{}, errors.Wrap(err, "creating deliverable")
	}
	return svc.policy.View(d, nil), nil
}

// Get is the authoritative read path: the deliverable, its late flag and its current evaluation.
func (svc *Service) Get(ctx context.Context, id string) (View, error) {
	d, err := svc.repo.GetDeliverable(ctx, id)
	if err != nil {
		return View{}, errors.Wrap(err, "getting deliverable")
	}
	return svc.view(ctx, d, nil)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]View, error) {
	filter.Clean()
	filter.Now = svc.policy.Now().UTC()
	ds, err := svc.repo.QueryDeliverables(ctx, filter, ordering...)
	if err != nil {
		return nil, errors.Wrap(err, "querying deliverables")
	}
	views := make([]View, 0, len(ds))
	for _, d := range ds {
		views = append(views, svc.policy.View(d, nil))
	}
	return views, nil
}

// Late lists the late deliverables, those of one project if projectID is set, most overdue first.
func (svc *Service) Late(ctx context.Context, projectID string) ([]View, error) {
	return svc.Query(ctx, QueryFilter{ProjectID: projectID, LateOnly: true}, core.DBOrdering{Field: "due_at", Ascending: true})
}

// History returns the evaluation ledger of an existing deliverable, newest first.
func (svc *Service) History(ctx context.Context, id string) (iter.Seq2[EvaluationRecord, error], error) {
	if _, err := svc.repo.GetDeliverable(ctx, id); err != nil {
		return nil, errors.Wrap(err, "getting deliverable")
	}
	return History(ctx, svc.repo, id, svc.historyPageSize), nil
}

// OpenFile returns the file submitted for a deliverable along with its content; callers close it.
func (svc *Service) OpenFile(ctx context.Context, id string) (SubmittedFile, io.ReadCloser, error) {
	d, err := svc.repo.GetDeliverable(ctx, id)
	if err != nil {
		return SubmittedFile{}, nil, errors.Wrap(err, "getting deliverable")
	}
	if d.File == nil {
		return SubmittedFile{}, nil, ErrNoFile
	}
	rc, err := svc.files.Open(ctx, d.File.StorageRef)
	if err != nil {
		return SubmittedFile{}, nil, errors.Wrap(err, "opening submitted file")
	}
	return *d.File, rc, nil
}

// Submit transfers the file then moves the deliverable from TO_SUBMIT to SUBMITTED.
func (svc *Service) Submit(ctx context.Context, id string, fh FileHandle, submitter Submitter) (View, error) {
	d, err := svc.repo.GetDeliverable(ctx, id)
	if err != nil {
		return View{}, errors.Wrap(err, "getting deliverable")
	}
	if !submitter.IsMemberOf(d.GroupID) {
		return View{}, ErrNotGroupMember
	}
	if d.Status != StatusToSubmit {
		return View{}, submitError(d.ID, d.Status)
	}
	if err = fh.validate(); err != nil {
		return View{}, err
	}

	file, err := svc.transfer(ctx, d.ID, fh)
	if err != nil {
		return View{}, err
	}
	if err = ctx.Err(); err != nil { // abandoned while transferring
		svc.removeFile(file.StorageRef)
		return View{}, &TransferError{Err: err}
	}

	saved, _, err := svc.transition(ctx, id, EventSubmit, Actors{SubmitterID: submitter.UserID}, nil,
		func(d *Deliverable, now time.Time) (*EvaluationRecord, error) {
			f := file
			d.File = &f
			d.SubmittedAt = &now
			d.SubmittedBy = submitter.UserID
			return nil, nil
		},
	)
	if err != nil {
		svc.removeFile(file.StorageRef)
		var itErr *InvalidTransitionError
		if errors.As(err, &itErr) {
			return View{}, submitError(id, itErr.From)
		}
		return View{}, err
	}
	return svc.policy.View(saved, nil), nil
}

func (svc *Service) BeginCorrection(ctx context.Context, id string, evaluator Evaluator) (View, error) {
	saved, _, err := svc.transition(ctx, id, EventBeginCorrection, Actors{EvaluatorID: evaluator.UserID}, svc.projectTeacherGuard(evaluator), nil)
	if err != nil {
		return View{}, err
	}
	return svc.view(ctx, saved, nil)
}

// Evaluate grades a SUBMITTED or IN_CORRECTION deliverable and appends the evaluation to its ledger.
func (svc *Service) Evaluate(ctx context.Context, id string, ne NewEvaluation, evaluator Evaluator) (View, error) {
	if err := ne.Validate(svc.validate, svc.translator); err != nil {
		return View{}, err
	}
	note, comment := *ne.Note, ne.Comment

	saved, rec, err := svc.transition(ctx, id, EventEvaluate, Actors{EvaluatorID: evaluator.UserID}, svc.projectTeacherGuard(evaluator),
		func(d *Deliverable, now time.Time) (*EvaluationRecord, error) {
			d.Note = &note
			d.Comment = &comment
			return &EvaluationRecord{
				DeliverableID: d.ID,
				Note:          note,
				Comment:       comment,
				EvaluatorID:   evaluator.UserID,
				CreatedAt:     now,
			}, nil
		},
	)
	if err != nil {
		return View{}, err
	}
	return svc.policy.View(saved, rec), nil
}

func (svc *Service) Reject(ctx context.Context, id string, evaluator Evaluator) (View, error) {
	saved, _, err := svc.transition(ctx, id, EventReject, Actors{EvaluatorID: evaluator.UserID}, svc.projectTeacherGuard(evaluator), nil)
	if err != nil {
		return View{}, err
	}
	return svc.view(ctx, saved, nil)
}

// mutation applies the side effects of an event on d, which already carries the target status.
type mutation func(d *Deliverable, now time.Time) (*EvaluationRecord, error)

// guard authorizes an event on the stored deliverable, before its status is looked at.
type guard func(ctx context.Context, d Deliverable) error

// projectTeacherGuard lets admins through, and otherwise only the teacher of the deliverable's project.
func (svc *Service) projectTeacherGuard(evaluator Evaluator) guard {
	return func(ctx context.Context, d Deliverable) error {
		if evaluator.Admin {
			return nil
		}
		teacher, err := svc.dir.ProjectTeacher(ctx, d.ProjectID)
		if errors.Is(err, user.ErrNotFound) {
			return ErrNotProjectTeacher
		}
		if err != nil {
			return errors.Wrap(err, "getting project teacher")
		}
		if evaluator.UserID == "" || teacher.ID != evaluator.UserID {
			return ErrNotProjectTeacher
		}
		return nil
	}
}

// transition runs read, authorize, validate, mutate & save as one atomic unit against the stored deliverable.
// A version conflict is retried once; if the event is no longer applicable by then, or the retry
// conflicts again, a *ConflictError is returned. The notification fires once, after the commit.
func (svc *Service) transition(ctx context.Context, id string, ev Event, actors Actors, authorize guard, mutate mutation) (Deliverable, *EvaluationRecord, error) {
	for attempt := 0; ; attempt++ {
		d, err := svc.repo.GetDeliverable(ctx, id)
		if err != nil {
			return Deliverable{}, nil, errors.Wrap(err, "getting deliverable")
		}
		if authorize != nil && attempt == 0 {
			if err = authorize(ctx, d); err != nil {
				return Deliverable{}, nil, err
			}
		}
		next, err := d.Status.Next(ev)
		if err != nil {
			if attempt > 0 {
				return Deliverable{}, nil, &ConflictError{DeliverableID: id, Err: err}
			}
			return Deliverable{}, nil, err
		}

		now := svc.policy.Now().UTC()
		updated := d
		updated.Status = next
		updated.UpdatedAt = now

		var rec *EvaluationRecord
		if mutate != nil {
			if rec, err = mutate(&updated, now); err != nil {
				return Deliverable{}, nil, err
			}
		}

		saved, err := svc.repo.SaveTransition(ctx, updated, rec)
		if err == nil {
			svc.logger.Info(fmt.Sprintf("deliverable %s: %s -> %s (%s)", id, d.Status, saved.Status, ev), saved)
			if actors.SubmitterID == "" {
				actors.SubmitterID = saved.SubmittedBy
			}
			svc.notify(ctx, ev, saved, actors, rec, now)
			return saved, rec, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return Deliverable{}, nil, errors.Wrap(err, "saving transition")
		}
		if attempt >= maxTransitionRetries {
			return Deliverable{}, nil, &ConflictError{DeliverableID: id, Err: err}
		}
		svc.logger.Warn(fmt.Sprintf("deliverable %s: version conflict on %s, retrying", id, ev), d)
	}
}

// notify fires the notification raised by ev, if any. It never fails the committed transition.
func (svc *Service) notify(ctx context.Context, ev Event, d Deliverable, actors Actors, rec *EvaluationRecord, at time.Time) {
	nev, ok := ev.Notification()
	if !ok || svc.notifier == nil {
		return
	}
	n := Notification{
		Event:       nev,
		Deliverable: d,
		Late:        svc.policy.IsLate(d),
		Actors:      actors,
		Evaluation:  rec,
		OccurredAt:  at,
	}
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Error(fmt.Sprintf("notifying %s for deliverable %s: %v", nev, d.ID, r), n)
		}
	}()
	svc.notifier.Notify(context.WithoutCancel(ctx), n)
}

// view builds the read model of d. The ledger is only read when d carries an evaluation.
func (svc *Service) view(ctx context.Context, d Deliverable, current *EvaluationRecord) (View, error) {
	if current == nil && d.Note != nil {
		var err error
		if current, err = CurrentEvaluation(ctx, svc.repo, d.ID); err != nil {
			return View{}, errors.Wrap(err, "getting current evaluation")
		}
	}
	return svc.policy.View(d, current), nil
}
