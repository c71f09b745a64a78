// Package imap reads course submissions from the folders of an IMAP account.
package imap

import (
	"context"
	"io"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
)

// PasswordFunc supplies the account password when it is not configured.
type PasswordFunc func() (string, error)

type Mailbox struct {
	addr      string
	username  string
	password  string
	delimiter string
	insecure  bool
	prompt    PasswordFunc
	logger    core.Logger

	mu sync.Mutex
	c  *client.Client
}

var _ core.Mailbox = (*Mailbox)(nil)

func NewMailbox(conf *core.Config, prompt PasswordFunc, logger core.Logger) *Mailbox {
	return &Mailbox{
		addr:      net.JoinHostPort(conf.Mailbox.Host, strconv.Itoa(conf.Mailbox.Port)),
		username:  conf.Mailbox.Username,
		password:  conf.Mailbox.Password,
		delimiter: conf.Mailbox.Delimiter,
		insecure:  conf.Mailbox.Insecure,
		prompt:    prompt,
		logger:    logger,
	}
}

// connect logs in on first use; the session is reused until Close.
func (mb *Mailbox) connect() (*client.Client, error) {
	if mb.c != nil {
		return mb.c, nil
	}

	var (
		c   *client.Client
		err error
	)
	if mb.insecure {
		c, err = client.Dial(mb.addr)
	} else {
		c, err = client.DialTLS(mb.addr, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", mb.addr)
	}

	password := mb.password
	if password == "" && mb.prompt != nil {
		if password, err = mb.prompt(); err != nil {
			_ = c.Logout()
			return nil, errors.Wrap(err, "reading password")
		}
	}
	if err := c.Login(mb.username, password); err != nil {
		_ = c.Logout()
		return nil, errors.Wrapf(err, "logging in as %s", mb.username)
	}
	mb.logger.Debug("logged in to " + mb.addr)
	mb.c = c
	return c, nil
}

// Close logs out of the server, if connected.
func (mb *Mailbox) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.c == nil {
		return nil
	}
	err := mb.c.Logout()
	mb.c = nil
	return err
}

func (mb *Mailbox) folderName(folder []string) string {
	return strings.Join(folder, mb.delimiter)
}

// fetch selects `folder` read-only and streams its messages, with the given items, to `fn`.
func (mb *Mailbox) fetch(ctx context.Context, folder []string, items []imap.FetchItem, fn func(*imap.Message) error) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	c, err := mb.connect()
	if err != nil {
		return err
	}
	name := mb.folderName(folder)
	status, err := c.Select(name, true /* read-only */)
	if err != nil {
		return errors.Wrapf(err, "selecting folder %s", name)
	}
	if status.Messages == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(1, status.Messages)
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var fnErr error
	for msg := range messages { // drain, even after an error
		if fnErr != nil {
			continue
		}
		if fnErr = ctx.Err(); fnErr == nil {
			fnErr = fn(msg)
		}
	}
	if err := <-done; err != nil {
		return errors.Wrapf(err, "fetching messages of %s", name)
	}
	return fnErr
}

func senderOf(env *imap.Envelope) (mail.Address, bool) {
	if env == nil || len(env.From) == 0 {
		return mail.Address{}, false
	}
	from := env.From[0]
	if from.MailboxName == "" || from.HostName == "" {
		return mail.Address{}, false
	}
	return mail.Address{
		Name:    from.PersonalName,
		Address: core.CleanString(from.MailboxName+"@"+from.HostName, true /* lower */),
	}, true
}

func (mb *Mailbox) ListSenders(ctx context.Context, folder []string) (core.Members, error) {
	members := make(core.Members)
	err := mb.fetch(ctx, folder, []imap.FetchItem{imap.FetchEnvelope}, func(msg *imap.Message) error {
		if sender, ok := senderOf(msg.Envelope); ok {
			members[sender.Address] = core.DisplayName(sender)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// FindMessageBySender returns the first message of `folder` sent by `sender`, fetched with BODY.PEEK[]
// so that it is not flagged as seen.
func (mb *Mailbox) FindMessageBySender(ctx context.Context, folder []string, sender string) (core.MailMessage, error) {
	sender = core.CleanString(sender, true /* lower */)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	var (
		found core.MailMessage
		ok    bool
	)
	err := mb.fetch(ctx, folder, items, func(msg *imap.Message) error {
		if ok {
			return nil
		}
		from, valid := senderOf(msg.Envelope)
		if !valid || from.Address != sender {
			return nil
		}
		body := msg.GetBody(section)
		if body == nil {
			return errors.Errorf("server returned no body for message %d", msg.Uid)
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return errors.Wrapf(err, "reading message %d", msg.Uid)
		}
		found = core.MailMessage{
			ID:      strconv.FormatUint(uint64(msg.Uid), 10),
			Folder:  folder,
			From:    from,
			Subject: msg.Envelope.Subject,
			Raw:     raw,
		}
		ok = true
		return nil
	})
	if err != nil {
		return core.MailMessage{}, err
	}
	if !ok {
		return core.MailMessage{}, errors.Wrapf(core.ErrMessageNotFound, "from %s", sender)
	}
	return found, nil
}
