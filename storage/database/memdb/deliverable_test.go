package memdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

func newDeliverable(t *testing.T, repo *deliverableRepository, name string, due time.Time, status deliverable.Status) deliverable.Deliverable {
	d, err := repo.CreateDeliverable(context.Background(), deliverable.Deliverable{
		ProjectID: "p1",
		GroupID:   "g1",
		Name:      name,
		DueAt:     due,
		Status:    status,
	})
	require.NoError(t, err)
	return d
}

func Test_deliverableRepository_SaveTransition(t *testing.T) {
	ctx := context.Background()
	repo := NewDeliverableRepository(Open())
	d := newDeliverable(t, repo, "Report", time.Now(), deliverable.StatusInCorrection)
	require.EqualValues(t, 1, d.Version)

	note, comment := 15.0, "Good work overall."
	first := d
	first.Status = deliverable.StatusGraded
	first.Note, first.Comment = &note, &comment
	rec := &deliverable.EvaluationRecord{Note: note, Comment: comment, EvaluatorID: "t1"}

	saved, err := repo.SaveTransition(ctx, first, rec)
	require.NoError(t, err)
	assert.EqualValues(t, 2, saved.Version)
	assert.Equal(t, 1, rec.Seq)
	assert.Equal(t, d.ID, rec.DeliverableID)

	// stale version
	stale := d
	stale.Status = deliverable.StatusRejected
	_, err = repo.SaveTransition(ctx, stale, nil)
	assert.ErrorIs(t, err, deliverable.ErrVersionConflict)

	got, err := repo.GetDeliverable(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, deliverable.StatusGraded, got.Status)
	assert.EqualValues(t, 2, got.Version)

	// unknown
	_, err = repo.SaveTransition(ctx, deliverable.Deliverable{ID: "nope"}, nil)
	assert.ErrorIs(t, err, deliverable.ErrNotFound)
}

func Test_deliverableRepository_GetDeliverable_noAliasing(t *testing.T) {
	ctx := context.Background()
	repo := NewDeliverableRepository(Open())
	d := newDeliverable(t, repo, "Report", time.Now(), deliverable.StatusSubmitted)

	note := 12.0
	d.Note = &note
	got, err := repo.GetDeliverable(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Note)

	got.Name = "changed"
	again, _ := repo.GetDeliverable(ctx, d.ID)
	assert.Equal(t, "Report", again.Name)
}

func Test_deliverableRepository_ListEvaluations(t *testing.T) {
	ctx := context.Background()
	repo := NewDeliverableRepository(Open())
	d := newDeliverable(t, repo, "Report", time.Now(), deliverable.StatusInCorrection)

	// the ledger only grows through SaveTransition; bypass the state machine to fill it
	for i := 1; i <= 5; i++ {
		cur, err := repo.GetDeliverable(ctx, d.ID)
		require.NoError(t, err)
		_, err = repo.SaveTransition(ctx, cur, &deliverable.EvaluationRecord{Note: float64(i), Comment: "comment number"})
		require.NoError(t, err)
	}

	seqs := func(recs []deliverable.EvaluationRecord) []int {
		out := make([]int, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.Seq)
		}
		return out
	}

	tests := []struct {
		name      string
		beforeSeq int
		limit     int
		want      []int
	}{
		{name: "newest first", limit: 2, want: []int{5, 4}},
		{name: "next page", beforeSeq: 4, limit: 2, want: []int{3, 2}},
		{name: "last page", beforeSeq: 2, limit: 2, want: []int{1}},
		{name: "past the end", beforeSeq: 1, limit: 2, want: []int{}},
		{name: "everything", limit: 10, want: []int{5, 4, 3, 2, 1}},
		{name: "zero limit", limit: 0, want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListEvaluations(ctx, d.ID, tt.beforeSeq, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seqs(got))
		})
	}
}

func Test_deliverableRepository_QueryDeliverables(t *testing.T) {
	ctx := context.Background()
	repo := NewDeliverableRepository(Open())
	now := time.Date(2025, 1, 11, 12, 0, 0, 0, time.UTC)

	overdue := newDeliverable(t, repo, "Overdue", now.Add(-48*time.Hour), deliverable.StatusToSubmit)
	upcoming := newDeliverable(t, repo, "Upcoming", now.Add(48*time.Hour), deliverable.StatusToSubmit)
	graded := newDeliverable(t, repo, "Graded", now.Add(-72*time.Hour), deliverable.StatusGraded)
	other, err := repo.CreateDeliverable(ctx, deliverable.Deliverable{
		ProjectID: "p2", GroupID: "g2", Name: "Other", DueAt: now, Status: deliverable.StatusSubmitted,
	})
	require.NoError(t, err)

	ids := func(ds []deliverable.Deliverable) []string {
		out := make([]string, 0, len(ds))
		for _, d := range ds {
			out = append(out, d.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   deliverable.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all, by due date", want: []string{graded.ID, overdue.ID, other.ID, upcoming.ID}},
		{name: "by project", filter: deliverable.QueryFilter{ProjectID: "p2"}, want: []string{other.ID}},
		{name: "by status", filter: deliverable.QueryFilter{Statuses: []deliverable.Status{deliverable.StatusToSubmit}}, want: []string{overdue.ID, upcoming.ID}},
		{name: "late only", filter: deliverable.QueryFilter{LateOnly: true, Now: now}, want: []string{overdue.ID}},
		{name: "due before", filter: deliverable.QueryFilter{DueBefore: now}, want: []string{graded.ID, overdue.ID}},
		{
			name:     "by name desc",
			ordering: []core.DBOrdering{{Field: "name", Ascending: false}},
			want:     []string{upcoming.ID, overdue.ID, other.ID, graded.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryDeliverables(ctx, tt.filter, tt.ordering...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func Test_directory(t *testing.T) {
	ctx := context.Background()
	db := Open()
	dir := NewDirectory(db)

	_, err := dir.ProjectTeacher(ctx, "unknown")
	assert.Error(t, err)

	teacher := dir.AddUser(userFixture("teacher"))
	s1 := dir.AddUser(userFixture("s1"))
	s2 := dir.AddUser(userFixture("s2"))
	projectID := dir.AddProject(teacher.ID)
	groupID := dir.AddGroup(s1.ID, s2.ID, "ghost")

	got, err := dir.ProjectTeacher(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, teacher, got)

	members, err := dir.GroupMembers(ctx, groupID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{s1.ID, s2.ID}, []string{members[0].ID, members[1].ID})

	db.Reset()
	_, err = dir.ProjectTeacher(ctx, projectID)
	assert.Error(t, err)
}

func userFixture(uname string) user.User {
	return user.User{Name: uname, Username: uname, Email: uname + "@test.cd"}
}
