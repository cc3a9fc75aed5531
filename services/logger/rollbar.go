package logsvc

import (
	"log"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func deliverableData(d deliverable.Deliverable) map[string]interface{} {
	data := map[string]interface{}{
		"id":         d.ID,
		"project_id": d.ProjectID,
		"group_id":   d.GroupID,
		"status":     d.Status,
		"version":    d.Version,
	}
	if d.File != nil {
		data["file_ref"] = d.File.StorageRef
	}
	return data
}

// custom turns a domain argument into Rollbar custom data. ok is false for any other argument.
func custom(arg interface{}) (key string, data map[string]interface{}, ok bool) {
	switch a := arg.(type) {
	case deliverable.Deliverable:
		return "deliverable", deliverableData(a), true
	case deliverable.View:
		data = deliverableData(a.Deliverable)
		data["late"] = a.Late
		return "deliverable", data, true
	case deliverable.Notification:
		data = map[string]interface{}{
			"event":        a.Event,
			"deliverable":  deliverableData(a.Deliverable),
			"submitter_id": a.Actors.SubmitterID,
			"evaluator_id": a.Actors.EvaluatorID,
			"late":         a.Late,
			"occurred_at":  a.OccurredAt,
		}
		if a.Evaluation != nil {
			data["evaluation_seq"] = a.Evaluation.Seq
		}
		return "notification", data, true
	default:
		return "", nil, false
	}
}

// expected fmt: msg | error, map[string]interface{}, user.User,
// deliverable.Deliverable | deliverable.View | deliverable.Notification.
// Maps & domain values are merged into a single custom data map.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	var extras map[string]interface{}
	addExtra := func(k string, v interface{}) {
		if extras == nil {
			extras = make(map[string]interface{})
		}
		extras[k] = v
	}

	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			// set logged in User
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
			continue
		}
		if key, data, ok := custom(arg); ok {
			addExtra(key, data)
			continue
		}
		if m, ok := arg.(map[string]interface{}); ok {
			for k, v := range m {
				addExtra(k, v)
			}
			continue
		}
		newArgs = append(newArgs, arg)
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case deliverable.Deliverable:
			l.std.Printf("deliverable %s [%s v%d]\n", a.ID, a.Status, a.Version)
		case deliverable.View:
			l.std.Printf("deliverable %s [%s v%d late=%t]\n", a.ID, a.Status, a.Version, a.Late)
		case deliverable.Notification:
			l.std.Printf("notification %s of deliverable %s at %s\n", a.Event, a.Deliverable.ID, a.OccurredAt.Format(time.RFC3339))
		case user.User:
			l.std.Printf("user %s\n", a)
		default:
			l.std.Printf("%+v\n", arg)
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(msg, args)
	l.std.Fatal(msg)
}
