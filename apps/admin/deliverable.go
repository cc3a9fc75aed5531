package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	echoapi "github.com/scolab/backend/apps/api/echo"
	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

const dateLayout = "2006-01-02 15:04 MST"

// addDeliverable creates a deliverable.Deliverable, to submit before due.
func (cli *commandLine) addDeliverable(projectID, groupID, name, description, due string) error {
	dueAt, err := time.Parse(time.RFC3339, strings.TrimSpace(due))
	if err != nil {
		return errors.Wrap(err, "parsing due date")
	}

	view, err := cli.svc.Create(context.Background(), deliverable.NewDeliverable{
		ProjectID:   projectID,
		GroupID:     groupID,
		Name:        name,
		Description: description,
		DueAt:       dueAt,
	})
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			for _, fld := range vErr.Fields {
				_, _ = fmt.Fprintf(cli.out, "  %s: %s\n", fld.Field, fld.Error)
			}
		}
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "created deliverable %s (due %s)\n", view.ID, view.DueAt.Format(dateLayout))
	return nil
}

// late prints the late deliverables, most overdue first.
func (cli *commandLine) late(projectID string) error {
	views, err := cli.svc.Late(context.Background(), core.CleanString(projectID, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "listing late deliverables")
	}
	if len(views) == 0 {
		_, _ = fmt.Fprintln(cli.out, "no late deliverable")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tGROUP\tSTATUS\tDUE")
	for _, v := range views {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.GroupID, v.Status, v.DueAt.Format(dateLayout))
	}
	return w.Flush()
}

// token prints a signed API token; tokens are normally issued by the identity provider.
func (cli *commandLine) token(userID, username, email, role, groups string) error {
	roles := map[string]string{"admin": user.RoleAdmin, "teacher": user.RoleTeacher, "student": user.RoleStudent}
	r, ok := roles[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return errors.Errorf("unknown role %q", role)
	}

	var groupIDs []string
	for _, id := range strings.Split(groups, ",") {
		if id = core.CleanString(id, true /* lower */); id != "" {
			groupIDs = append(groupIDs, id)
		}
	}

	usr := user.User{ID: userID, Username: username, Email: email, Roles: []string{r}}
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(cli.conf, usr, groupIDs...), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}
