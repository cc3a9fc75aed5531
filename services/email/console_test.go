package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolab/backend/core"
	testutil "github.com/scolab/backend/tests"
)

func Test_consoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf, testutil.NopLogger{})
	ResetSentMessages()

	to := []mail.Address{{Name: "Student", Address: "student@test.cd"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "hi", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{To: to, Subject: "no content"},
		&core.EmailMessage{To: to, Subject: "unknown template", TemplateName: "nope"},
	)

	sent := Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Subject)
	assert.Equal(t, "hello", sent[0].TextContent)

	ResetSentMessages()
	assert.Empty(t, Sent())
}

func Test_consoleService_write(t *testing.T) {
	conf := core.NewTestConfig()
	svc := consoleService{defaultFromEmail: conf.DefaultFromEmail(), subjPrefix: "[Scolab] ", logger: testutil.NopLogger{}, disableOutput: true}

	err := svc.write(core.EmailMessage{
		To:          []mail.Address{{Address: "student@test.cd"}},
		Subject:     "hi",
		TextContent: "hello",
		Attachments: []core.Attachment{},
	})
	assert.NoError(t, err)
}
