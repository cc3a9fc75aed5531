package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

type userRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Username  string         `db:"username"`
	Email     string         `db:"email"`
	Roles     pq.StringArray `db:"roles"`
	CreatedAt time.Time      `db:"created_at"`
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:        row.ID,
		Name:      row.Name,
		Username:  row.Username,
		Email:     row.Email,
		Roles:     []string(row.Roles),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type directory struct {
	db core.DBExecutor
}

var _ deliverable.Directory = (*directory)(nil)

// NewDirectory resolves project teachers and group members from the users, projects & group_members tables.
func NewDirectory(db *sqlx.DB) *directory {
	return &directory{db: db}
}

func (dir *directory) ProjectTeacher(ctx context.Context, projectID string) (user.User, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return user.User{}, user.ErrNotFound
	}
	const query = `
		SELECT u.id, u.name, u.username, u.email, u.roles, u.created_at
		FROM users u
		JOIN projects p ON p.teacher_id = u.id
		WHERE p.id = $1`
	var row userRow
	if err := dir.db.GetContext(ctx, &row, query, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting project teacher")
	}
	return row.toUser(), nil
}

func (dir *directory) GroupMembers(ctx context.Context, groupID string) ([]user.User, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return []user.User{}, nil
	}
	const query = `
		SELECT u.id, u.name, u.username, u.email, u.roles, u.created_at
		FROM users u
		JOIN group_members gm ON gm.user_id = u.id
		WHERE gm.group_id = $1
		ORDER BY u.name`
	var rows []userRow
	if err := dir.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, errors.Wrap(err, "selecting group members")
	}
	members := make([]user.User, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toUser())
	}
	return members, nil
}
