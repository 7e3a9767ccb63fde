package emailsvc

import (
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/profile"
	logsvc "github.com/trezcool/acolher/services/logger"
)

func inviteMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Address: "rita@lar.org"}},
		Subject:      "Ana invited you to join Casa Lar",
		TemplateName: core.EmailInvite,
		TemplateData: profile.InviteMailData{
			InviterName:     "Ana",
			InstitutionName: "Casa Lar",
			UID:             "dWlk",
			Token:           "tok-123",
		},
	}
}

func TestConsoleService(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(conf, logger)
	svc := NewConsoleServiceMock(conf, logger)

	svc.SendMessages(inviteMessage(), &core.EmailMessage{Subject: "no recipient", BodyStr: "x"})

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Ana convidou você para a equipe de Casa Lar")
	assert.Contains(t, sent[0].TextContent, conf.FrontendBaseURL+"/invites/dWlk/tok-123")
	assert.NotEmpty(t, sent[0].HTMLContent)
}

func TestSendgridService(t *testing.T) {
	conf := core.NewTestConfig()
	conf.SendgridApiKey = "SG.test"
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(conf, logger)

	var body string
	origAPI := sendgridAPI
	sendgridAPI = func(req rest.Request) (*rest.Response, error) {
		body = string(req.Body)
		assert.Equal(t, rest.Post, req.Method)
		assert.True(t, strings.HasSuffix(req.BaseURL, endpoint))
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}
	defer func() { sendgridAPI = origAPI }()

	svc := NewEmailService(conf, logger)
	require.IsType(t, &sendgridService{}, svc)
	msg := inviteMessage()
	require.NoError(t, msg.Attach(strings.NewReader("Data;Valor\n"), "report.csv", "text/csv"))
	svc.SendMessages(msg)
	svc.Wait()

	assert.Contains(t, body, "rita@lar.org")
	assert.Contains(t, body, "[Acolher] Ana invited you to join Casa Lar")
	assert.Contains(t, body, "text/html")
	assert.Contains(t, body, `"filename":"report.csv"`)
	assert.Contains(t, body, `"disposition":"attachment"`)
}

func TestNewEmailService_Console(t *testing.T) {
	conf := core.NewTestConfig()
	assert.IsType(t, &consoleService{}, NewEmailService(conf, logsvc.NewNopLogger()))
}
