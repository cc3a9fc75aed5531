package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/user"
)

// executorStub answers Get & Select with its rows, or err; it records the queries it is given.
type executorStub struct {
	rows    []userRow
	err     error
	queries []string
}

var _ core.DBExecutor = (*executorStub)(nil)

func (ex *executorStub) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errors.New("not implemented")
}

func (ex *executorStub) GetContext(_ context.Context, dest interface{}, query string, _ ...interface{}) error {
	ex.queries = append(ex.queries, query)
	if ex.err != nil {
		return ex.err
	}
	if len(ex.rows) == 0 {
		return sql.ErrNoRows
	}
	*dest.(*userRow) = ex.rows[0]
	return nil
}

func (ex *executorStub) SelectContext(_ context.Context, dest interface{}, query string, _ ...interface{}) error {
	ex.queries = append(ex.queries, query)
	if ex.err != nil {
		return ex.err
	}
	*dest.(*[]userRow) = append([]userRow(nil), ex.rows...)
	return nil
}

func Test_directory_ProjectTeacher(t *testing.T) {
	teacher := userRow{ID: uuid.NewString(), Name: "Teacher", Username: "teacher", Email: "teacher@test.cd", Roles: pq.StringArray{user.RoleTeacher}}
	dbErr := errors.New("connection refused")

	tests := []struct {
		name      string
		projectID string
		exec      *executorStub
		want      user.User
		wantErr   error
		wantQuery bool
	}{
		{name: "found", projectID: uuid.NewString(), exec: &executorStub{rows: []userRow{teacher}}, want: teacher.toUser(), wantQuery: true},
		{name: "no row", projectID: uuid.NewString(), exec: &executorStub{}, wantErr: user.ErrNotFound, wantQuery: true},
		{name: "not a uuid", projectID: "nope", exec: &executorStub{}, wantErr: user.ErrNotFound},
		{name: "db error", projectID: uuid.NewString(), exec: &executorStub{err: dbErr}, wantErr: dbErr, wantQuery: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &directory{db: tt.exec}
			got, err := dir.ProjectTeacher(context.Background(), tt.projectID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			if tt.wantQuery {
				require.Len(t, tt.exec.queries, 1)
				assert.True(t, strings.Contains(tt.exec.queries[0], "JOIN projects p ON p.teacher_id = u.id"))
			} else {
				assert.Empty(t, tt.exec.queries)
			}
		})
	}
}

func Test_directory_GroupMembers(t *testing.T) {
	rows := []userRow{
		{ID: uuid.NewString(), Name: "Amani", Email: "amani@test.cd", Roles: pq.StringArray{user.RoleStudent}},
		{ID: uuid.NewString(), Name: "Bahati", Roles: pq.StringArray{user.RoleStudent}},
	}
	dir := &directory{db: &executorStub{rows: rows}}

	members, err := dir.GroupMembers(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, rows[0].ID, members[0].ID)
	assert.Equal(t, []string{user.RoleStudent}, members[1].Roles)

	members, err = dir.GroupMembers(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, members)

	dir = &directory{db: &executorStub{err: errors.New("connection refused")}}
	_, err = dir.GroupMembers(context.Background(), uuid.NewString())
	assert.Error(t, err)
}
