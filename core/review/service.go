package review

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
)

// email templates
const (
	tmplForReview      = "for_review"
	tmplReviewReturned = "review_returned"
	tmplNotReviewed    = "not_reviewed"
)

var NowFunc = time.Now // mockable

type (
	Repository interface {
		// SaveRound records a round, replacing any round with the same title.
		SaveRound(ctx context.Context, round Round) error
		// GetRound returns core.ErrRoundNotFound for an unknown title.
		GetRound(ctx context.Context, title string) (Round, error)
	}

	Service interface {
		SendForReview(ctx context.Context, folder []string) (SendReport, error)
		ReturnReviewed(ctx context.Context, folder []string, round string) (Reconciliation, error)
		NotifyUnhappy(ctx context.Context, round string, members []string) error
		PairRoster(ctx context.Context, round string, members core.Members) (Round, error)
		GetRound(ctx context.Context, round string) (Round, error)
	}

	ServiceConfig struct {
		AppName        string
		FillerEmail    string
		ReviewDeadline string
	}

	service struct {
		mailbox core.Mailbox
		mailSvc core.EmailService
		repo    Repository
		logger  core.Logger
		rnd     Shuffler
		conf    ServiceConfig
	}

	forReviewData struct {
		Person        string
		WorkbookTitle string
		Deadline      string
	}

	reviewReturnedData struct {
		Reviewer      string
		WorkbookTitle string
	}

	notReviewedData struct {
		WorkbookTitle string
		ReviewerEmail string
	}
)

var _ Service = (*service)(nil)

func NewService(
	mailbox core.Mailbox,
	mailSvc core.EmailService,
	repo Repository,
	logger core.Logger,
	rnd Shuffler,
	conf ServiceConfig,
) Service {
	return &service{
		mailbox: mailbox,
		mailSvc: mailSvc,
		repo:    repo,
		logger:  logger,
		rnd:     rnd,
		conf:    conf,
	}
}

// NewServiceConfig extracts the review settings from the app config.
func NewServiceConfig(conf *core.Config) ServiceConfig {
	return ServiceConfig{
		AppName:        conf.AppName,
		FillerEmail:    conf.FillerEmail,
		ReviewDeadline: conf.ReviewDeadline,
	}
}

func workbookTitle(folder []string) (string, error) {
	if len(folder) == 0 {
		return "", errors.Wrap(core.ErrInvalidConfiguration, "empty folder path")
	}
	return folder[len(folder)-1], nil
}

func sortedKeys(members core.Members) []string {
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (svc *service) newRound(ctx context.Context, title string, members core.Members) (Round, error) {
	partition, err := CreateRandomPairings(sortedKeys(members), svc.conf.FillerEmail, svc.rnd)
	if err != nil {
		return Round{}, errors.Wrapf(err, "pairing %s", title)
	}
	round := Round{Title: title, Partition: partition, CreatedAt: NowFunc().UTC()}
	if err := svc.repo.SaveRound(ctx, round); err != nil {
		return Round{}, errors.Wrapf(err, "saving round %s", title)
	}
	svc.logger.Info(fmt.Sprintf("round %q: %d pairings recorded", title, len(partition)))
	return round, nil
}

// SendForReview pairs the senders of `folder` and forwards each submission to its reviewer.
// The round is named after the last folder of the path.
func (svc *service) SendForReview(ctx context.Context, folder []string) (SendReport, error) {
	title, err := workbookTitle(folder)
	if err != nil {
		return SendReport{}, err
	}
	members, err := svc.mailbox.ListSenders(ctx, folder)
	if err != nil {
		return SendReport{}, errors.Wrap(err, "listing submissions")
	}
	round, err := svc.newRound(ctx, title, members)
	if err != nil {
		return SendReport{}, err
	}

	report := SendReport{Round: round, Missing: []string{}}
	subject := "For Review: " + title
	for _, pairing := range round.Partition {
		if pairing.B == "" {
			report.Missing = append(report.Missing, pairing.A)
			continue
		}
		for _, fwd := range [][2]string{{pairing.A, pairing.B}, {pairing.B, pairing.A}} {
			author, reviewer := fwd[0], fwd[1]
			sent, err := svc.forwardSubmission(ctx, folder, author, reviewer, subject, &emailBody{
				Template: tmplForReview,
				Data: forReviewData{
					Person:        svc.displayName(members, author),
					WorkbookTitle: title,
					Deadline:      svc.conf.ReviewDeadline,
				},
			})
			if err != nil {
				return report, err
			}
			if sent {
				report.Forwarded++
			} else {
				report.Missing = append(report.Missing, author)
			}
		}
	}
	return report, nil
}

// ReturnReviewed forwards each returned review in `folder` to the author it was paired with in
// `round`, then reconciles who received a review.
func (svc *service) ReturnReviewed(ctx context.Context, folder []string, round string) (Reconciliation, error) {
	if len(folder) == 0 {
		return Reconciliation{}, errors.Wrap(core.ErrInvalidConfiguration, "empty folder path")
	}
	rnd, err := svc.repo.GetRound(ctx, round)
	if err != nil {
		return Reconciliation{}, errors.Wrapf(err, "loading round %s", round)
	}
	members, err := svc.mailbox.ListSenders(ctx, folder)
	if err != nil {
		return Reconciliation{}, errors.Wrap(err, "listing returned reviews")
	}

	subject := rnd.Title + " Review"
	responded := make([]string, 0, len(members))
	for _, member := range sortedKeys(members) {
		partner, ok := FindPairMatch(member, rnd.Partition)
		if !ok {
			continue // not in the round, or unpaired
		}
		sent, err := svc.forwardSubmission(ctx, folder, member, partner, subject, &emailBody{
			Template: tmplReviewReturned,
			Data: reviewReturnedData{
				Reviewer:      svc.displayName(members, member),
				WorkbookTitle: rnd.Title,
			},
		})
		if err != nil {
			return Reconciliation{}, err
		}
		if sent {
			responded = append(responded, member)
		}
	}

	rec := ComputeUnhappy(rnd.Partition, responded)
	rec.Round = rnd.Title
	// senders outside the round; round members whose review could not be forwarded are not unmatched
	for _, member := range sortedKeys(members) {
		if !contains(responded, member) && !contains(rec.Unmatched, member) && !rnd.Partition.Has(member) {
			rec.Unmatched = append(rec.Unmatched, member)
			if match := closestMember(member, rnd.Partition); match != "" {
				if rec.Suggestions == nil {
					rec.Suggestions = make(map[string]string)
				}
				rec.Suggestions[member] = match
			}
		}
	}
	sort.Strings(rec.Unmatched)
	if len(rec.Unmatched) > 0 {
		svc.logger.Warn(fmt.Sprintf("round %q: no matches for %v", rnd.Title, rec.Unmatched))
	}
	return rec, nil
}

// NotifyUnhappy tells each member of `members` that their reviewer did not return a review.
func (svc *service) NotifyUnhappy(ctx context.Context, round string, members []string) error {
	rnd, err := svc.repo.GetRound(ctx, round)
	if err != nil {
		return errors.Wrapf(err, "loading round %s", round)
	}

	messages := make([]*core.EmailMessage, 0, len(members))
	for _, member := range members {
		reviewer, ok := FindPairMatch(member, rnd.Partition)
		if !ok {
			svc.logger.Warn(fmt.Sprintf("round %q: %s has no reviewer, not notified", rnd.Title, member))
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Address: member}},
			Subject:      fmt.Sprintf("Your workbook, %s, was not reviewed :(", rnd.Title),
			AppName:      svc.conf.AppName,
			TemplateName: tmplNotReviewed,
			TemplateData: notReviewedData{WorkbookTitle: rnd.Title, ReviewerEmail: reviewer},
		})
	}
	if err := svc.mailSvc.SendMessages(ctx, messages...); err != nil {
		return errors.Wrap(err, "notifying unhappy members")
	}
	svc.logger.Info(fmt.Sprintf("round %q: %d members notified", rnd.Title, len(messages)))
	return nil
}

// PairRoster pairs a roster without a mailbox and records the round.
func (svc *service) PairRoster(ctx context.Context, round string, members core.Members) (Round, error) {
	round = core.CleanString(round)
	if round == "" {
		return Round{}, errors.Wrap(core.ErrInvalidConfiguration, "empty round title")
	}
	return svc.newRound(ctx, round, members)
}

func (svc *service) GetRound(ctx context.Context, round string) (Round, error) {
	return svc.repo.GetRound(ctx, round)
}

// emailBody is the template to render as the body of a forwarded message.
type emailBody struct {
	Template string
	Data     interface{}
}

// forwardSubmission forwards `author`'s message in `folder` to `to`.
// sent is false when `author` has no message in `folder`.
func (svc *service) forwardSubmission(
	ctx context.Context,
	folder []string,
	author, to, subject string,
	body *emailBody,
) (sent bool, err error) {
	msg, err := svc.mailbox.FindMessageBySender(ctx, folder, author)
	if err != nil {
		if errors.Is(err, core.ErrMessageNotFound) {
			svc.logger.Warn(fmt.Sprintf("no message from %s in %v", author, folder))
			return false, nil
		}
		return false, errors.Wrapf(err, "finding message from %s", author)
	}

	fwd := core.NewForward(msg, to, subject, "")
	fwd.AppName = svc.conf.AppName
	fwd.TemplateName = body.Template
	fwd.TemplateData = body.Data
	if err := svc.mailSvc.SendMessages(ctx, fwd); err != nil {
		return false, errors.Wrapf(err, "forwarding %s's message to %s", author, to)
	}
	svc.logger.Debug(fmt.Sprintf("forwarded %s's message to %s", author, to))
	return true, nil
}

func (svc *service) displayName(members core.Members, id string) string {
	if name, ok := members[id]; ok && name != "" {
		return name
	}
	return core.DisplayName(mail.Address{Address: id})
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
