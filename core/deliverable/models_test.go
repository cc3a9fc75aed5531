package deliverable

import (
	"errors"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/scolab/backend/core"
)

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func fieldNames(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *core.ValidationError", err)
	}
	flds := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

func TestNewEvaluation_Validate(t *testing.T) {
	validate, translator := newValidator()
	fPtr := func(f float64) *float64 { return &f }

	tests := []struct {
		name       string
		ne         NewEvaluation
		wantFields []string
	}{
		{name: "valid", ne: NewEvaluation{Note: fPtr(17.5), Comment: "Excellent respect des consignes."}},
		{name: "zero note", ne: NewEvaluation{Note: fPtr(0), Comment: "Nothing was delivered."}},
		{name: "max note", ne: NewEvaluation{Note: fPtr(20), Comment: "Flawless, well done!"}},
		{name: "note too high & comment too short", ne: NewEvaluation{Note: fPtr(25), Comment: "ok"}, wantFields: []string{"note", "comment"}},
		{name: "negative note", ne: NewEvaluation{Note: fPtr(-1), Comment: "Not acceptable at all."}, wantFields: []string{"note"}},
		{name: "not a half step", ne: NewEvaluation{Note: fPtr(12.3), Comment: "Pretty decent work."}, wantFields: []string{"note"}},
		{name: "missing note", ne: NewEvaluation{Comment: "Pretty decent work."}, wantFields: []string{"note"}},
		{name: "blank comment", ne: NewEvaluation{Note: fPtr(10), Comment: "            "}, wantFields: []string{"comment"}},
		{name: "comment short once trimmed", ne: NewEvaluation{Note: fPtr(10), Comment: "   short      "}, wantFields: []string{"comment"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ne.Validate(validate, translator)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			flds := fieldNames(t, err)
			for _, f := range tt.wantFields {
				if _, ok := flds[f]; !ok {
					t.Errorf("Validate() fields = %v, want an error on %q", flds, f)
				}
			}
		})
	}
}

func TestNewEvaluation_Validate_trimsComment(t *testing.T) {
	ne := NewEvaluation{Note: new(float64), Comment: "  Well structured report.  "}
	if err := ne.Validate(newValidator()); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
	if ne.Comment != "Well structured report." {
		t.Errorf("Comment = %q", ne.Comment)
	}
}

func TestNewDeliverable_Validate(t *testing.T) {
	validate, translator := newValidator()
	pid := "5b0e3a2e-7d36-4d51-9a3c-3c3f7e0f6a10"
	gid := "0f8fad5b-d9cb-469f-a165-70867728950e"
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		nd         NewDeliverable
		wantFields []string
	}{
		{name: "valid", nd: NewDeliverable{ProjectID: pid, GroupID: gid, Name: "Final report", DueAt: due}},
		{name: "blank name", nd: NewDeliverable{ProjectID: pid, GroupID: gid, Name: "   ", DueAt: due}, wantFields: []string{"name"}},
		{name: "bad ids", nd: NewDeliverable{ProjectID: "p", GroupID: "", Name: "Report", DueAt: due}, wantFields: []string{"project_id", "group_id"}},
		{name: "no due date", nd: NewDeliverable{ProjectID: pid, GroupID: gid, Name: "Report"}, wantFields: []string{"due_at"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nd.Validate(validate, translator)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			flds := fieldNames(t, err)
			for _, f := range tt.wantFields {
				if _, ok := flds[f]; !ok {
					t.Errorf("Validate() fields = %v, want an error on %q", flds, f)
				}
			}
		})
	}
}

func TestAppreciation(t *testing.T) {
	tests := []struct {
		note float64
		want string
	}{
		{20, "Very good"},
		{16, "Very good"},
		{15.5, "Good"},
		{14, "Good"},
		{12, "Fairly good"},
		{10, "Pass"},
		{9.5, "Insufficient"},
		{0, "Insufficient"},
	}
	for _, tt := range tests {
		if got := (EvaluationRecord{Note: tt.note}).Appreciation(); got != tt.want {
			t.Errorf("Appreciation(%v) = %q, want %q", tt.note, got, tt.want)
		}
	}
}

func TestKindFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     FileKind
	}{
		{"report.PDF", KindPDF},
		{"slides.pptx", KindDocument},
		{"budget.xlsx", KindSpreadsheet},
		{"src.tar.gz", KindArchive},
		{"diagram.png", KindImage},
		{"README.md", KindText},
		{"binary", KindOther},
		{"program.exe", KindOther},
	}
	for _, tt := range tests {
		if got := KindFromFilename(tt.filename); got != tt.want {
			t.Errorf("KindFromFilename(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestQueryFilter_Clean(t *testing.T) {
	qf := QueryFilter{
		ProjectID: "  ABC ",
		Statuses:  []Status{"graded", " submitted ", "LATE", "nope"},
	}
	qf.Clean()
	if qf.ProjectID != "abc" {
		t.Errorf("ProjectID = %q", qf.ProjectID)
	}
	if len(qf.Statuses) != 2 || qf.Statuses[0] != StatusGraded || qf.Statuses[1] != StatusSubmitted {
		t.Errorf("Statuses = %v", qf.Statuses)
	}
}
