package review_test

import (
	"context"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connorferster/python-course-admin/core"
	"github.com/connorferster/python-course-admin/core/review"
	emailsvc "github.com/connorferster/python-course-admin/services/email"
	inmemdb "github.com/connorferster/python-course-admin/storage/database/inmem"
)

var (
	submissions = []string{"Python Course", "Workbook 1"}
	returns     = []string{"Python Course", "Workbook 1 Reviews"}
	createdAt   = time.Date(2023, 9, 12, 14, 30, 0, 0, time.UTC)
)

type noShuffle struct{}

func (noShuffle) Shuffle(int, func(i, j int)) {}

type testLogger struct{ t *testing.T }

func (l testLogger) log(level, msg string, args []interface{}) {
	l.t.Helper()
	l.t.Logf("%s: %s %v", level, msg, args)
}
func (l testLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL: %s %v", msg, args) }

// fakeMailbox holds messages per folder path.
// Senders in `gone` are listed but their message can no longer be fetched.
type fakeMailbox struct {
	folders map[string][]core.MailMessage
	gone    map[string]bool
	err     error
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{folders: make(map[string][]core.MailMessage), gone: make(map[string]bool)}
}

func (mb *fakeMailbox) add(folder []string, from mail.Address) {
	key := strings.Join(folder, "/")
	mb.folders[key] = append(mb.folders[key], core.MailMessage{
		ID:      from.Address,
		Folder:  folder,
		From:    from,
		Subject: folder[len(folder)-1],
		Raw:     []byte("From: " + from.String() + "\r\nSubject: workbook\r\n\r\nsee attachment\r\n"),
	})
}

func (mb *fakeMailbox) ListSenders(_ context.Context, folder []string) (core.Members, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	members := make(core.Members)
	for _, msg := range mb.folders[strings.Join(folder, "/")] {
		members[msg.From.Address] = core.DisplayName(msg.From)
	}
	return members, nil
}

func (mb *fakeMailbox) FindMessageBySender(_ context.Context, folder []string, sender string) (core.MailMessage, error) {
	if mb.gone[sender] {
		return core.MailMessage{}, core.ErrMessageNotFound
	}
	for _, msg := range mb.folders[strings.Join(folder, "/")] {
		if msg.From.Address == sender {
			return msg, nil
		}
	}
	return core.MailMessage{}, core.ErrMessageNotFound
}

type fixture struct {
	svc     review.Service
	mailbox *fakeMailbox
	mailSvc *emailsvc.ConsoleService
	repo    review.Repository
}

func setup(t *testing.T, filler string) fixture {
	t.Helper()
	review.NowFunc = func() time.Time { return createdAt }
	t.Cleanup(func() { review.NowFunc = time.Now })

	conf := &core.Config{
		AppName:          "Python Course",
		DefaultFromEmail: "course@x.com",
		FillerEmail:      filler,
		ReviewDeadline:   "9am on Thursday (sharp)",
	}
	f := fixture{
		mailbox: newFakeMailbox(),
		mailSvc: emailsvc.NewConsoleServiceMock(conf),
		repo:    inmemdb.NewRoundRepository(inmemdb.Open()),
	}
	f.svc = review.NewService(f.mailbox, f.mailSvc, f.repo, testLogger{t}, noShuffle{}, review.NewServiceConfig(conf))
	return f
}

func assertGolden(t *testing.T, name string, content string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(content))
}

func TestService_SendForReview(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "filler@x.com")
	f.mailbox.add(submissions, mail.Address{Name: "Ann Lee", Address: "a@x.com"})
	f.mailbox.add(submissions, mail.Address{Address: "b@x.com"})
	f.mailbox.add(submissions, mail.Address{Name: "Cy", Address: "c@x.com"})

	report, err := f.svc.SendForReview(ctx, submissions)
	require.NoError(t, err)

	wantPartition := review.Partition{{A: "a@x.com", B: "b@x.com"}, {A: "c@x.com", B: "filler@x.com"}}
	assert.Equal(t, review.Round{Title: "Workbook 1", Partition: wantPartition, CreatedAt: createdAt}, report.Round)
	assert.Equal(t, 3, report.Forwarded)
	assert.Equal(t, []string{"filler@x.com"}, report.Missing)

	saved, err := f.repo.GetRound(ctx, "Workbook 1")
	require.NoError(t, err)
	assert.Equal(t, wantPartition, saved.Partition)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 3)
	wantRoutes := [][2]string{{"b@x.com", "a.eml"}, {"a@x.com", "b.eml"}, {"filler@x.com", "c.eml"}}
	for i, route := range wantRoutes {
		msg := sent[i]
		require.Len(t, msg.To, 1)
		assert.Equal(t, route[0], msg.To[0].Address)
		assert.Equal(t, "For Review: Workbook 1", msg.Subject)
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, route[1], msg.Attachments[0].Filename)
		assert.Equal(t, "message/rfc822", msg.Attachments[0].ContentType)
	}
	assertGolden(t, "for_review", sent[0].TextContent)
	assert.Contains(t, sent[0].HTMLContent, "<strong>Ann Lee</strong>")
	assert.Contains(t, sent[1].TextContent, "Please review B's notebook")
}

func TestService_SendForReview_errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty folder", func(t *testing.T) {
		f := setup(t, "filler@x.com")
		_, err := f.svc.SendForReview(ctx, nil)
		assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	})

	t.Run("mailbox failure", func(t *testing.T) {
		f := setup(t, "filler@x.com")
		f.mailbox.err = errors.New("connection reset")
		_, err := f.svc.SendForReview(ctx, submissions)
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("odd count without filler", func(t *testing.T) {
		f := setup(t, "")
		f.mailbox.add(submissions, mail.Address{Address: "a@x.com"})
		_, err := f.svc.SendForReview(ctx, submissions)
		assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
		assert.Empty(t, f.mailSvc.SentMessages())

		_, err = f.repo.GetRound(ctx, "Workbook 1")
		assert.ErrorIs(t, err, core.ErrRoundNotFound)
	})

	t.Run("empty folder of submissions", func(t *testing.T) {
		f := setup(t, "")
		report, err := f.svc.SendForReview(ctx, submissions)
		require.NoError(t, err)
		assert.Empty(t, report.Round.Partition)
		assert.Zero(t, report.Forwarded)
	})
}

func TestService_ReturnReviewed(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "filler@x.com")
	require.NoError(t, f.repo.SaveRound(ctx, review.Round{
		Title:     "Workbook 1",
		Partition: review.Partition{{A: "a@x.com", B: "b@x.com"}, {A: "c@x.com", B: "filler@x.com"}},
		CreatedAt: createdAt,
	}))
	f.mailbox.add(returns, mail.Address{Name: "Ann Lee", Address: "a@x.com"})
	f.mailbox.add(returns, mail.Address{Address: "stranger@y.com"})

	rec, err := f.svc.ReturnReviewed(ctx, returns, "Workbook 1")
	require.NoError(t, err)
	assert.Equal(t, review.Reconciliation{
		Round:     "Workbook 1",
		Happy:     []string{"b@x.com"},
		Unhappy:   []string{"a@x.com", "c@x.com", "filler@x.com"},
		Unpaired:  []string{},
		Unmatched: []string{"stranger@y.com"},
	}, rec)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "b@x.com", sent[0].To[0].Address)
	assert.Equal(t, "Workbook 1 Review", sent[0].Subject)
	assertGolden(t, "review_returned", sent[0].TextContent)
}

func TestService_ReturnReviewed_roundMembers(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "")
	require.NoError(t, f.repo.SaveRound(ctx, review.Round{
		Title:     "Workbook 1",
		Partition: review.Partition{{A: "CFerster@rjc.ca", B: "b@x.com"}, {A: "c@x.com", B: "d@x.com"}, {A: "e@x.com"}},
		CreatedAt: createdAt,
	}))
	// senders are listed lower-cased by every mailbox
	f.mailbox.add(returns, mail.Address{Address: "cferster@rjc.ca"})
	f.mailbox.add(returns, mail.Address{Address: "c@x.com"})
	f.mailbox.add(returns, mail.Address{Address: "e@x.com"})
	f.mailbox.gone["c@x.com"] = true

	rec, err := f.svc.ReturnReviewed(ctx, returns, "Workbook 1")
	require.NoError(t, err)
	assert.Equal(t, review.Reconciliation{
		Round:     "Workbook 1",
		Happy:     []string{"b@x.com"},
		Unhappy:   []string{"CFerster@rjc.ca", "c@x.com", "d@x.com"},
		Unpaired:  []string{"e@x.com"},
		Unmatched: []string{},
	}, rec)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "b@x.com", sent[0].To[0].Address)
}

func TestService_ReturnReviewed_unknownRound(t *testing.T) {
	f := setup(t, "")
	_, err := f.svc.ReturnReviewed(context.Background(), returns, "Workbook 9")
	assert.ErrorIs(t, err, core.ErrRoundNotFound)
}

func TestService_NotifyUnhappy(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "filler@x.com")
	require.NoError(t, f.repo.SaveRound(ctx, review.Round{
		Title:     "Workbook 1",
		Partition: review.Partition{{A: "a@x.com", B: "b@x.com"}, {A: "c@x.com"}},
	}))

	err := f.svc.NotifyUnhappy(ctx, "Workbook 1", []string{"a@x.com", "c@x.com", "nobody@x.com"})
	require.NoError(t, err)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].To[0].Address)
	assert.Equal(t, "Your workbook, Workbook 1, was not reviewed :(", sent[0].Subject)
	assert.Empty(t, sent[0].Attachments)
	assertGolden(t, "not_reviewed", sent[0].TextContent)

	err = f.svc.NotifyUnhappy(ctx, "Workbook 2", []string{"a@x.com"})
	assert.ErrorIs(t, err, core.ErrRoundNotFound)
}

func TestService_PairRoster(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "filler@x.com")
	members := core.Members{"b@x.com": "B", "a@x.com": "A", "c@x.com": "C"}

	tests := []struct {
		name    string
		round   string
		want    review.Partition
		wantErr error
	}{
		{name: "empty title", round: "  ", wantErr: core.ErrInvalidConfiguration},
		{
			name:  "odd roster",
			round: " Workbook 2 ",
			want:  review.Partition{{A: "a@x.com", B: "b@x.com"}, {A: "c@x.com", B: "filler@x.com"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rnd, err := f.svc.PairRoster(ctx, tt.round, members)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rnd.Partition)

			got, err := f.svc.GetRound(ctx, "Workbook 2")
			require.NoError(t, err)
			assert.Equal(t, rnd, got)
		})
	}
	assert.Empty(t, f.mailSvc.SentMessages())
}
