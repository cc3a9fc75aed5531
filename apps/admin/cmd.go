package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf *core.Config
	db   *sql.DB
	svc  deliverable.ServiceInterface
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  adddeliverable -project ID -group ID -name NAME -due RFC3339 [-description TEXT] - create a deliverable")
	_, _ = fmt.Fprintln(cli.out, "  late [-project ID] - list the late deliverables, most overdue first")
	_, _ = fmt.Fprintln(cli.out, "  token -user ID [-username NAME] [-email EMAIL] [-role ROLE] [-groups ID,ID] - sign an API token for local use")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addDeliverableCmd := flag.NewFlagSet("adddeliverable", flag.ContinueOnError)
	addDeliverableCmd.SetOutput(cli.out)
	addDeliverableProject := addDeliverableCmd.String("project", "", "The project ID.")
	addDeliverableGroup := addDeliverableCmd.String("group", "", "The ID of the group which must submit the deliverable.")
	addDeliverableName := addDeliverableCmd.String("name", "", "The deliverable's name.")
	addDeliverableDesc := addDeliverableCmd.String("description", "", "The deliverable's description.")
	addDeliverableDue := addDeliverableCmd.String("due", "", "The due date, in RFC3339 format.")

	lateCmd := flag.NewFlagSet("late", flag.ContinueOnError)
	lateCmd.SetOutput(cli.out)
	lateProject := lateCmd.String("project", "", "Only list the deliverables of this project.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenUser := tokenCmd.String("user", "", "The user ID (token subject).")
	tokenUsername := tokenCmd.String("username", "", "The username.")
	tokenEmail := tokenCmd.String("email", "", "The email address.")
	tokenRole := tokenCmd.String("role", "student", "The role: admin, teacher or student.")
	tokenGroups := tokenCmd.String("groups", "", "Comma-separated IDs of the groups the user belongs to.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adddeliverable":
		if err := addDeliverableCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addDeliverableName == "" || *addDeliverableDue == "" {
			addDeliverableCmd.Usage()
			return errHelp
		}
		return cli.addDeliverable(*addDeliverableProject, *addDeliverableGroup, *addDeliverableName, *addDeliverableDesc, *addDeliverableDue)
	case "late":
		if err := lateCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.late(*lateProject)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUser == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUser, *tokenUsername, *tokenEmail, *tokenRole, *tokenGroups)
	default:
		cli.printUsage()
		return errHelp
	}
}
