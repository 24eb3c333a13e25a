package emailsvc

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/proctor/proctortest"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "ExamGuard",
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "ExamGuard", Address: "noreply@test.cd"},
	}
}

func Test_consoleServiceMock_SendMessages(t *testing.T) {
	conf := testConfig()
	core.ParseEmailTemplates(conf, new(proctortest.Logger))
	svc := NewConsoleServiceMock(conf)

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "inv@test.cd"}}, Subject: "plain", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{
			To:           []mail.Address{{Address: "inv@test.cd"}},
			Subject:      "templated",
			TemplateName: "attempt_terminated",
			TemplateData: map[string]interface{}{
				"AttemptID":      "a-1",
				"ExamID":         "math-101",
				"CandidateID":    "cand-1",
				"CandidateEmail": "cand@test.cd",
				"ViolationCount": 3,
				"MaxViolations":  3,
				"Violations":     []interface{}{},
			},
		},
	)

	msgs := SentTo("inv@test.cd")
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "hello", msgs[0].TextContent)
		assert.Contains(t, msgs[1].TextContent, "Attempt a-1 of exam math-101 was terminated.")
		assert.Contains(t, msgs[1].HTMLContent, "math-101")
	}
}

func Test_consoleServiceMock_attachment(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig())

	msg := &core.EmailMessage{To: []mail.Address{{Address: "ledger@test.cd"}}, Subject: "ledger"}
	if err := msg.Attach(strings.NewReader("seq,kind\n1,TAB_SWITCH\n"), "violations-a-1.csv", "text/csv"); err != nil {
		t.Fatalf("Attach() failed: %v", err)
	}
	svc.SendMessages(msg)

	msgs := SentTo("ledger@test.cd")
	if assert.Len(t, msgs, 1, "an attachment alone is enough content") && assert.Len(t, msgs[0].Attachments, 1) {
		at := msgs[0].Attachments[0]
		assert.Equal(t, "violations-a-1.csv", at.Filename)
		assert.Equal(t, "text/csv", at.ContentType)
		content, err := base64.StdEncoding.DecodeString(at.Content.String())
		assert.NoError(t, err)
		assert.Equal(t, "seq,kind\n1,TAB_SWITCH\n", string(content))
	}
}

func Test_sendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testConfig(), new(proctortest.Logger)).(*sendgridService)

	tests := []struct {
		name            string
		msg             core.EmailMessage
		wantParts       int
		wantAttachments int
	}{
		{name: "text only", msg: core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, TextContent: "hi"}, wantParts: 1},
		{name: "text and html", msg: core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, TextContent: "hi", HTMLContent: "<p>hi</p>"}, wantParts: 2},
		{name: "with attachment", msg: withLedger(t, core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, TextContent: "hi"}), wantParts: 1, wantAttachments: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := svc.prepare(tt.msg)
			assert.Len(t, m.Content, tt.wantParts)
			if assert.Len(t, m.Personalizations, 1) {
				assert.Equal(t, "[ExamGuard] ", m.Personalizations[0].Subject)
			}
			assert.Equal(t, "noreply@test.cd", m.From.Address)
			if assert.Len(t, m.Attachments, tt.wantAttachments) && tt.wantAttachments > 0 {
				assert.Equal(t, "violations.csv", m.Attachments[0].Filename)
				assert.Equal(t, "text/csv", m.Attachments[0].Type)
				assert.Equal(t, "attachment", m.Attachments[0].Disposition)
				assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("seq\n")), m.Attachments[0].Content)
			}
		})
	}
}

func withLedger(t *testing.T, msg core.EmailMessage) core.EmailMessage {
	if err := msg.Attach(strings.NewReader("seq\n"), "violations.csv", "text/csv"); err != nil {
		t.Fatalf("Attach() failed: %v", err)
	}
	return msg
}
