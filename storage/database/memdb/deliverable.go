package memdb

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
)

type deliverableRepository struct {
	db *deliverableTable
}

var _ deliverable.Repository = (*deliverableRepository)(nil) // interface compliance check

func NewDeliverableRepository(db *DB) *deliverableRepository {
	return &deliverableRepository{db: db.deliverable}
}

// clone copies d so that stored rows never share pointers with callers.
func clone(d deliverable.Deliverable) deliverable.Deliverable {
	if d.File != nil {
		f := *d.File
		d.File = &f
	}
	if d.SubmittedAt != nil {
		at := *d.SubmittedAt
		d.SubmittedAt = &at
	}
	if d.Note != nil {
		n := *d.Note
		d.Note = &n
	}
	if d.Comment != nil {
		c := *d.Comment
		d.Comment = &c
	}
	return d
}

func (repo *deliverableRepository) CreateDeliverable(_ context.Context, d deliverable.Deliverable) (deliverable.Deliverable, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Version == 0 {
		d.Version = 1
	}
	stored := clone(d)
	repo.db.table[d.ID] = &stored
	return clone(stored), nil
}

func (repo *deliverableRepository) GetDeliverable(_ context.Context, id string) (deliverable.Deliverable, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.table[id]; ok {
		return clone(*d), nil
	}
	return deliverable.Deliverable{}, deliverable.ErrNotFound
}

func (repo *deliverableRepository) QueryDeliverables(_ context.Context, filter deliverable.QueryFilter, ordering ...core.DBOrdering) ([]deliverable.Deliverable, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ds := make([]deliverable.Deliverable, 0, len(repo.db.table))
	for _, d := range repo.db.table {
		if matches(*d, filter) {
			ds = append(ds, clone(*d))
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "due_at", Ascending: true}}
	}
	slices.SortStableFunc(ds, func(a, b deliverable.Deliverable) int {
		for _, ord := range ordering {
			c := compareField(a, b, ord.Field)
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	})
	return ds, nil
}

func matches(d deliverable.Deliverable, filter deliverable.QueryFilter) bool {
	if filter.ProjectID != "" && d.ProjectID != filter.ProjectID {
		return false
	}
	if filter.GroupID != "" && d.GroupID != filter.GroupID {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, d.Status) {
		return false
	}
	if !filter.DueBefore.IsZero() && !d.DueAt.Before(filter.DueBefore.UTC()) {
		return false
	}
	if filter.LateOnly && !deliverable.IsLate(d.DueAt, d.SubmittedAt, d.Status, filter.Now) {
		return false
	}
	return true
}

func compareField(a, b deliverable.Deliverable, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "status":
		return cmp.Compare(a.Status, b.Status)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "due_at":
		return a.DueAt.Compare(b.DueAt)
	default:
		return 0
	}
}

func (repo *deliverableRepository) SaveTransition(_ context.Context, d deliverable.Deliverable, rec *deliverable.EvaluationRecord) (deliverable.Deliverable, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[d.ID]
	if !ok {
		return deliverable.Deliverable{}, deliverable.ErrNotFound
	}
	if stored.Version != d.Version {
		return deliverable.Deliverable{}, deliverable.ErrVersionConflict
	}

	d.Version++
	if rec != nil {
		rec.DeliverableID = d.ID
		rec.Seq = len(repo.db.evaluations[d.ID]) + 1
		repo.db.evaluations[d.ID] = append(repo.db.evaluations[d.ID], *rec)
	}
	updated := clone(d)
	repo.db.table[d.ID] = &updated
	return clone(updated), nil
}

func (repo *deliverableRepository) ListEvaluations(_ context.Context, deliverableID string, beforeSeq, limit int) ([]deliverable.EvaluationRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if limit <= 0 {
		return []deliverable.EvaluationRecord{}, nil
	}
	records := repo.db.evaluations[deliverableID] // Seq == index + 1
	end := len(records)
	if beforeSeq > 0 && beforeSeq-1 < end {
		end = beforeSeq - 1
	}
	page := make([]deliverable.EvaluationRecord, 0, min(limit, end))
	for i := end - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, records[i])
	}
	return page, nil
}
