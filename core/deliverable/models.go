package deliverable

import (
	"database/sql/driver"
	"fmt"
	"path"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/scolab/backend/core"
)

// Status is the canonical, persisted state of a Deliverable.
type Status string

const (
	StatusToSubmit     Status = "TO_SUBMIT"
	StatusSubmitted    Status = "SUBMITTED"
	StatusInCorrection Status = "IN_CORRECTION"
	StatusGraded       Status = "GRADED"
	StatusRejected     Status = "REJECTED"

	// DisplayLate is the derived display state; it is computed on read and never stored.
	DisplayLate = "LATE"
)

var Statuses = []Status{StatusToSubmit, StatusSubmitted, StatusInCorrection, StatusGraded, StatusRejected}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Scan implements sql.Scanner.
func (s *Status) Scan(src interface{}) error {
	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("deliverable.Status: cannot scan %T", src)
	}
	st := Status(str)
	if !st.Valid() {
		return fmt.Errorf("deliverable.Status: invalid value %q", str)
	}
	*s = st
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("deliverable.Status: invalid value %q", string(s))
	}
	return string(s), nil
}

// Event is an action attempted on a Deliverable.
type Event string

const (
	EventSubmit          Event = "submit"
	EventBeginCorrection Event = "beginCorrection"
	EventEvaluate        Event = "evaluate"
	EventReject          Event = "reject"
)

var Events = []Event{EventSubmit, EventBeginCorrection, EventEvaluate, EventReject}

// FileKind is a coarse classification of a submitted file, derived from its extension.
type FileKind string

const (
	KindPDF         FileKind = "pdf"
	KindDocument    FileKind = "document"
	KindSpreadsheet FileKind = "spreadsheet"
	KindArchive     FileKind = "archive"
	KindImage       FileKind = "image"
	KindText        FileKind = "text"
	KindOther       FileKind = "other"
)

var fileKinds = map[string]FileKind{
	".pdf":  KindPDF,
	".doc":  KindDocument,
	".docx": KindDocument,
	".odt":  KindDocument,
	".ppt":  KindDocument,
	".pptx": KindDocument,
	".odp":  KindDocument,
	".xls":  KindSpreadsheet,
	".xlsx": KindSpreadsheet,
	".ods":  KindSpreadsheet,
	".csv":  KindSpreadsheet,
	".zip":  KindArchive,
	".rar":  KindArchive,
	".7z":   KindArchive,
	".tar":  KindArchive,
	".gz":   KindArchive,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".txt":  KindText,
	".md":   KindText,
}

func KindFromFilename(filename string) FileKind {
	if kind, ok := fileKinds[strings.ToLower(path.Ext(filename))]; ok {
		return kind
	}
	return KindOther
}

// SubmittedFile describes the file attached to a Deliverable.
// StorageRef is owned by the file storage; its content is never inspected here.
type SubmittedFile struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MediaType  string    `json:"media_type"`
	Kind       FileKind  `json:"kind"`
	UploadedAt time.Time `json:"uploaded_at"` // UTC
	StorageRef string    `json:"-"`
}

type Deliverable struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	GroupID     string         `json:"group_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	DueAt       time.Time      `json:"due_at"` // UTC
	Status      Status         `json:"status"`
	File        *SubmittedFile `json:"file"`
	SubmittedAt *time.Time     `json:"submitted_at"` // UTC
	SubmittedBy string         `json:"submitted_by,omitempty"`
	Note        *float64       `json:"note"`    // mirrors the current EvaluationRecord
	Comment     *string        `json:"comment"` // mirrors the current EvaluationRecord
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"created_at"` // UTC
	UpdatedAt   time.Time      `json:"updated_at"` // UTC
}

// EvaluationRecord is one immutable entry of a Deliverable's evaluation ledger.
// Seq starts at 1 and strictly increases per deliverable.
type EvaluationRecord struct {
	DeliverableID string    `json:"deliverable_id"`
	Seq           int       `json:"seq"`
	Note          float64   `json:"note"`
	Comment       string    `json:"comment"`
	EvaluatorID   string    `json:"evaluator_id"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

func (rec EvaluationRecord) Appreciation() string { return Appreciation(rec.Note) }

// Appreciation returns the label for a note out of 20.
func Appreciation(note float64) string {
	switch {
	case note >= 16:
		return "Very good"
	case note >= 14:
		return "Good"
	case note >= 12:
		return "Fairly good"
	case note >= 10:
		return "Pass"
	default:
		return "Insufficient"
	}
}

// View is the read model of a Deliverable: the stored record plus the values derived on read.
type View struct {
	Deliverable
	Late              bool              `json:"late"`
	DisplayStatus     string            `json:"display_status"`
	Actions           []Event           `json:"actions"`
	CurrentEvaluation *EvaluationRecord `json:"current_evaluation"`
}

// NewDeliverable contains information needed to create a new Deliverable.
type NewDeliverable struct {
	ProjectID   string    `json:"project_id" validate:"required,uuid"`
	GroupID     string    `json:"group_id" validate:"required,uuid"`
	Name        string    `json:"name" validate:"notblank,max=255"`
	Description string    `json:"description"`
	DueAt       time.Time `json:"due_at" validate:"required"`
}

func (nd *NewDeliverable) Validate(validate *validator.Validate, translator ut.Translator) error {
	nd.ProjectID = core.CleanString(nd.ProjectID, true /* lower */)
	nd.GroupID = core.CleanString(nd.GroupID, true /* lower */)
	nd.Name = core.CleanString(nd.Name)
	nd.Description = core.CleanString(nd.Description)
	return core.NewFieldsError(validate.Struct(nd), translator)
}

// NewEvaluation is the grading input: a note out of 20 (0.5 steps) and a comment.
type NewEvaluation struct {
	Note    *float64 `json:"note" validate:"required,gte=0,lte=20,halfstep"`
	Comment string   `json:"comment" validate:"notblank,min=10"`
}

func (ne *NewEvaluation) Validate(validate *validator.Validate, translator ut.Translator) error {
	ne.Comment = core.CleanString(ne.Comment)
	return core.NewFieldsError(validate.Struct(ne), translator)
}

// OrderingFields are the fields deliverables may be ordered by.
var OrderingFields = []string{"name", "status", "due_at", "created_at", "updated_at"}

type QueryFilter struct {
	ProjectID string    `query:"project"`
	GroupID   string    `query:"group"`
	Statuses  []Status  `query:"status"`
	DueBefore time.Time `query:"due_before"`
	LateOnly  bool      `query:"late"`

	// Now is the reference time for LateOnly; set by the Service.
	Now time.Time `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.ProjectID = core.CleanString(qf.ProjectID, true /* lower */)
	qf.GroupID = core.CleanString(qf.GroupID, true /* lower */)
	statuses := make([]Status, 0, len(qf.Statuses))
	for _, st := range qf.Statuses {
		st = Status(strings.ToUpper(core.CleanString(string(st))))
		if st.Valid() {
			statuses = append(statuses, st)
		}
	}
	qf.Statuses = statuses
}
