package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolab/backend/core"
	testutil "github.com/scolab/backend/tests"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := core.NewTestConfig()
	conf.FrontendBaseURL = "https://scolab.test"
	core.ParseEmailTemplates(conf, testutil.NopLogger{})

	type data struct {
		ID   string
		Name string
	}

	tests := []struct {
		name      string
		msg       core.EmailMessage
		wantErr   bool
		wantText  []string
		wantHTML  bool
		wantEmpty bool
	}{
		{
			name:     "plain body",
			msg:      core.EmailMessage{BodyStr: "hello"},
			wantText: []string{"hello"},
		},
		{
			name: "template",
			msg: core.EmailMessage{
				TemplateName: "deliverable_rejected",
				TemplateData: data{ID: "d1", Name: "Report"},
			},
			wantText: []string{"Hello,", `"Report" has been rejected`, "https://scolab.test/deliverables/d1"},
			wantHTML: true,
		},
		{
			name:    "unknown template",
			msg:     core.EmailMessage{TemplateName: "nope"},
			wantErr: true,
		},
		{
			name:    "missing template data",
			msg:     core.EmailMessage{TemplateName: "deliverable_rejected", TemplateData: struct{}{}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			err := msg.Render()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantText {
				assert.Contains(t, msg.TextContent, want)
			}
			if tt.wantHTML {
				assert.Contains(t, msg.HTMLContent, "<strong>Report</strong>")
			} else {
				assert.Empty(t, msg.HTMLContent)
			}
		})
	}
}
