package core

import (
	"bytes"
	"context"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/connorferster/python-course-admin/fs"
)

const templatesDir = "assets/templates/email"

var (
	templates tmplCache
	tmplErr   error
	tmplInit  sync.Once
	tmplFS    fs.FS = appfs.FS // mockable
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	Attachment struct {
		Content     []byte
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
		AppName      string
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName string
		Data    interface{}
	}

	// MailMessage is a message found in a mailbox folder.
	MailMessage struct {
		ID      string
		Folder  []string
		From    mail.Address
		Subject string
		Raw     []byte // full RFC 5322 message
	}

	// Members maps a sender's address to their display name.
	Members map[string]string

	// Mailbox is any service that can list and look up messages in a folder.
	// A folder is a path of nested folder names, e.g. ["Python Course", "Workbook 1"].
	Mailbox interface {
		ListSenders(ctx context.Context, folder []string) (Members, error)
		// FindMessageBySender returns ErrMessageNotFound when `sender` has no message in `folder`.
		FindMessageBySender(ctx context.Context, folder []string, sender string) (MailMessage, error)
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages in order and stops at the first failure.
		SendMessages(ctx context.Context, messages ...*EmailMessage) error
	}
)

// NewForward builds a message forwarding `msg` to `to`, the original being attached as message/rfc822.
func NewForward(msg MailMessage, to, subject, body string) *EmailMessage {
	fwd := &EmailMessage{
		To:      []mail.Address{{Address: to}},
		Subject: subject,
		BodyStr: body,
	}
	if len(msg.Raw) > 0 {
		fwd.Attachments = append(fwd.Attachments, Attachment{
			Content:     msg.Raw,
			ContentType: "message/rfc822",
			Filename:    forwardFilename(msg),
		})
	}
	return fwd
}

func forwardFilename(msg MailMessage) string {
	name := LocalPart(msg.From.Address)
	if name == "" {
		name = "message"
	}
	return name + ".eml"
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		AppName: m.AppName,
		Data:    m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML() error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

func (m *EmailMessage) Render() error {
	if m.TemplateName != "" {
		tmplInit.Do(parseTemplates) // only parse once
		if tmplErr != nil {
			return tmplErr
		}
	}
	if err := m.renderText(); err != nil {
		return errors.Wrap(err, "rendering text content")
	}
	return errors.Wrap(m.renderHTML(), "rendering html content")
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

func parseTemplates() {
	templates = make(tmplCache)

	fps, err := fs.Glob(tmplFS, path.Join(templatesDir, "*"))
	if err != nil {
		tmplErr = errors.Wrap(err, "listing email templates")
		return
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			entry = make(tmplCacheEntry)
			templates[name] = entry
		}
		base := path.Join(templatesDir, "_base"+ext)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(tmplFS, base, fp)
			if err != nil {
				tmplErr = fmt.Errorf("parsing %s: %w", fp, err)
				return
			}
			entry[ext] = tmpl.Option("missingkey=error")
		} else {
			tmpl, err := htmltmpl.ParseFS(tmplFS, base, fp)
			if err != nil {
				tmplErr = fmt.Errorf("parsing %s: %w", fp, err)
				return
			}
			entry[ext] = tmpl.Option("missingkey=error")
		}
	}
}
