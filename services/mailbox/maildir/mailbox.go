// Package maildir reads course submissions from a directory tree of .eml files.
// A folder path like ["Python Course", "Workbook 1"] maps to `<root>/Python Course/Workbook 1`.
package maildir

import (
	"bytes"
	"context"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
)

const msgExt = ".eml"

type Mailbox struct {
	root   string
	logger core.Logger
}

var _ core.Mailbox = (*Mailbox)(nil)

func NewMailbox(conf *core.Config, logger core.Logger) *Mailbox {
	return &Mailbox{root: conf.Mailbox.Root, logger: logger}
}

func (mb *Mailbox) dir(folder []string) string {
	return filepath.Join(append([]string{mb.root}, folder...)...)
}

// messages returns the parsable messages of `folder`, in file name order.
func (mb *Mailbox) messages(ctx context.Context, folder []string) ([]core.MailMessage, error) {
	dir := mb.dir(folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "opening folder %s", dir)
	}

	msgs := make([]core.MailMessage, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), msgExt) {
			continue
		}
		fp := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(fp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fp)
		}
		msg, err := parseMessage(raw)
		if err != nil {
			mb.logger.Warn("skipping unreadable message "+fp, err)
			continue
		}
		msg.ID = entry.Name()
		msg.Folder = folder
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func parseMessage(raw []byte) (core.MailMessage, error) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return core.MailMessage{}, errors.Wrap(err, "parsing message")
	}
	from, err := m.Header.AddressList("From")
	if err != nil {
		return core.MailMessage{}, errors.Wrap(err, "parsing From header")
	}
	if len(from) == 0 {
		return core.MailMessage{}, errors.New("message has no sender")
	}
	sender := *from[0]
	sender.Address = core.CleanString(sender.Address, true /* lower */)

	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if err != nil {
		subject = m.Header.Get("Subject")
	}
	return core.MailMessage{From: sender, Subject: subject, Raw: raw}, nil
}

func (mb *Mailbox) ListSenders(ctx context.Context, folder []string) (core.Members, error) {
	msgs, err := mb.messages(ctx, folder)
	if err != nil {
		return nil, err
	}
	members := make(core.Members, len(msgs))
	for _, msg := range msgs {
		members[msg.From.Address] = core.DisplayName(msg.From)
	}
	return members, nil
}

// FindMessageBySender returns the first message of `folder` sent by `sender`.
func (mb *Mailbox) FindMessageBySender(ctx context.Context, folder []string, sender string) (core.MailMessage, error) {
	msgs, err := mb.messages(ctx, folder)
	if err != nil {
		return core.MailMessage{}, err
	}
	sender = core.CleanString(sender, true /* lower */)
	for _, msg := range msgs {
		if msg.From.Address == sender {
			return msg, nil
		}
	}
	return core.MailMessage{}, errors.Wrapf(core.ErrMessageNotFound, "from %s", sender)
}
