// Package memdb is an in-memory storage for deliverables, used by tests & local runs without Postgres.
package memdb

import (
	"sync"

	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

type (
	DB struct {
		deliverable *deliverableTable
		directory   *directoryTable
	}

	deliverableTable struct {
		sync.RWMutex
		table       map[string]*deliverable.Deliverable
		evaluations map[string][]deliverable.EvaluationRecord // {deliverableID: records, oldest first}
	}

	directoryTable struct {
		sync.RWMutex
		users    map[string]user.User
		projects map[string]string   // {projectID: teacherID}
		groups   map[string][]string // {groupID: memberIDs}
	}
)

func Open() *DB {
	return &DB{
		deliverable: &deliverableTable{
			table:       make(map[string]*deliverable.Deliverable),
			evaluations: make(map[string][]deliverable.EvaluationRecord),
		},
		directory: &directoryTable{
			users:    make(map[string]user.User),
			projects: make(map[string]string),
			groups:   make(map[string][]string),
		},
	}
}

// Reset drops every row of every table.
func (db *DB) Reset() {
	db.deliverable.Lock()
	db.deliverable.table = make(map[string]*deliverable.Deliverable)
	db.deliverable.evaluations = make(map[string][]deliverable.EvaluationRecord)
	db.deliverable.Unlock()

	db.directory.Lock()
	db.directory.users = make(map[string]user.User)
	db.directory.projects = make(map[string]string)
	db.directory.groups = make(map[string][]string)
	db.directory.Unlock()
}
