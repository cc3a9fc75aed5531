package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Roles
const (
	RoleAdmin   = "admin:"
	RoleTeacher = "teacher:"
	RoleStudent = "student:"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	ErrNotFound = errors.New("user not found")
)

// User is the identity known to the deliverable workflow.
// Accounts & credentials are managed by the identity provider which issues the API tokens.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Roles     []string  `json:"roles" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

func (u User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool   { return u.RoleStartsWith(RoleAdmin) }
func (u User) IsTeacher() bool { return u.RoleStartsWith(RoleTeacher) }
func (u User) IsStudent() bool { return u.RoleStartsWith(RoleStudent) }

// Address returns the user's email address, or false if they have none.
func (u User) Address() (mail.Address, bool) {
	if u.Email == "" {
		return mail.Address{}, false
	}
	return mail.Address{Name: u.Name, Address: u.Email}, true
}

func (u User) String() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
