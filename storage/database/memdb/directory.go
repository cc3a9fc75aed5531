package memdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

// Directory is an in-memory deliverable.Directory, seeded with AddUser, AddProject & AddGroup.
type Directory struct {
	db *directoryTable
}

var _ deliverable.Directory = (*Directory)(nil)

func NewDirectory(db *DB) *Directory {
	return &Directory{db: db.directory}
}

func (dir *Directory) AddUser(usr user.User) user.User {
	dir.db.Lock()
	defer dir.db.Unlock()
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	dir.db.users[usr.ID] = usr
	return usr
}

func (dir *Directory) AddProject(teacherID string) string {
	dir.db.Lock()
	defer dir.db.Unlock()
	id := uuid.NewString()
	dir.db.projects[id] = teacherID
	return id
}

func (dir *Directory) AddGroup(memberIDs ...string) string {
	dir.db.Lock()
	defer dir.db.Unlock()
	id := uuid.NewString()
	dir.db.groups[id] = append([]string(nil), memberIDs...)
	return id
}

func (dir *Directory) ProjectTeacher(_ context.Context, projectID string) (user.User, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	teacherID, ok := dir.db.projects[projectID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr, ok := dir.db.users[teacherID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (dir *Directory) GroupMembers(_ context.Context, groupID string) ([]user.User, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	members := make([]user.User, 0, len(dir.db.groups[groupID]))
	for _, id := range dir.db.groups[groupID] {
		if usr, ok := dir.db.users[id]; ok {
			members = append(members, usr)
		}
	}
	return members, nil
}
