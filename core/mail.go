package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

// Email template names, as found under assets/templates/email.
const (
	EmailInvite        = "invite"
	EmailFinanceExport = "finance_export"
)

// mailTemplates holds the parsed email templates and the globals every one of them receives.
var mailTemplates = struct {
	sync.RWMutex
	byName          map[string]*emailTemplate
	appName         string
	frontendBaseURL string
}{byName: make(map[string]*emailTemplate)}

type (
	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	// Attachment content is base64 encoded.
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is what email templates are executed with.
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
		// Wait blocks until every message handed to SendMessages went out (or failed).
		Wait()
	}
)

func lookupTemplate(name string) (*emailTemplate, ContextData, bool) {
	mailTemplates.RLock()
	defer mailTemplates.RUnlock()
	tmpl, ok := mailTemplates.byName[name]
	return tmpl, ContextData{AppName: mailTemplates.appName, FrontendBaseURL: mailTemplates.frontendBaseURL}, ok
}

// Render fills TextContent and HTMLContent. Messages naming an unknown template keep BodyStr only.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	tmpl, data, ok := lookupTemplate(m.TemplateName)
	if !ok {
		return nil
	}
	data.Data = m.TemplateData

	var buff bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.Execute(&buff, data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buff.String()
	}
	if tmpl.html != nil {
		buff.Reset()
		if err := tmpl.html.Execute(&buff, data); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

// Attach adds the content of r as a file; the content type is sniffed unless given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	at := Attachment{
		Filename:    filename,
		Content:     bytes.NewBufferString(base64.StdEncoding.EncodeToString(content)),
		ContentType: http.DetectContentType(content),
	}
	if len(ct) > 0 {
		at.ContentType = ct[0]
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates loads every <name>.txt / <name>.gohtml under assets/templates/email,
// each extending its _base counterpart. Broken templates are logged and skipped.
func ParseEmailTemplates(conf *Config, logger Logger) {
	dir := filepath.Join(conf.WorkDir, "assets", "templates", "email")
	strict := conf.Debug || conf.TestMode

	parsed := make(map[string]*emailTemplate)
	get := func(name string) *emailTemplate {
		if parsed[name] == nil {
			parsed[name] = new(emailTemplate)
		}
		return parsed[name]
	}

	txts, _ := filepath.Glob(filepath.Join(dir, "*.txt"))
	for _, fp := range txts {
		name, ok := templateName(fp)
		if !ok {
			continue
		}
		tmpl, err := texttmpl.ParseFiles(filepath.Join(dir, "_base.txt"), fp)
		if err != nil {
			logger.Error(fmt.Sprintf("parsing email template %s: %v", filepath.Base(fp), err), err)
			continue
		}
		if strict {
			tmpl = tmpl.Option("missingkey=error")
		}
		get(name).text = tmpl
	}

	htmls, _ := filepath.Glob(filepath.Join(dir, "*.gohtml"))
	for _, fp := range htmls {
		name, ok := templateName(fp)
		if !ok {
			continue
		}
		tmpl, err := htmltmpl.ParseFiles(filepath.Join(dir, "_base.gohtml"), fp)
		if err != nil {
			logger.Error(fmt.Sprintf("parsing email template %s: %v", filepath.Base(fp), err), err)
			continue
		}
		if strict {
			tmpl = tmpl.Option("missingkey=error")
		}
		get(name).html = tmpl
	}

	if len(parsed) == 0 {
		logger.Warn(fmt.Sprintf("no email templates found in %s", dir))
	}

	mailTemplates.Lock()
	defer mailTemplates.Unlock()
	mailTemplates.byName = parsed
	mailTemplates.appName = conf.AppName
	mailTemplates.frontendBaseURL = conf.FrontendBaseURL
}

// templateName strips the extension; partials (leading "_") are not templates on their own.
func templateName(fp string) (string, bool) {
	base := filepath.Base(fp)
	if strings.HasPrefix(base, "_") {
		return "", false
	}
	return strings.TrimSuffix(base, filepath.Ext(base)), true
}
