package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

type SubmitLeadInput struct {
	Email           string         `json:"email"`
	Source          string         `json:"source"`
	AttachmentStyle string         `json:"attachment_style"`
	Answers         entity.Answers `json:"answers"`
}

type LeadSubmission struct {
	Lead    *entity.Lead `json:"lead"`
	Created bool         `json:"created"`
}

type LeadCapture struct {
	Leads  entity.LeadRepositoryInterface
	Events entity.EventPublisher
	Logger *zap.Logger
	Now    func() time.Time
}

func NewLeadCapture(leads entity.LeadRepositoryInterface, events entity.EventPublisher, logger *zap.Logger) *LeadCapture {
	return &LeadCapture{
		Leads:  leads,
		Events: orNoop(events),
		Logger: orNop(logger),
		Now:    utcNow,
	}
}

// CreateFromSubmission creates a lead, or replaces style and answers of the lead with
// the same email and refreshes its timestamp.
func (c *LeadCapture) CreateFromSubmission(ctx context.Context, input SubmitLeadInput) (*LeadSubmission, error) {
	if errs := ValidateLeadSubmission(input); len(errs) > 0 {
		return nil, validationFailure(errs)
	}

	lead, err := entity.NewLead(input.Email, input.Source, input.AttachmentStyle, input.Answers)
	if err != nil {
		return nil, validation(err.Error())
	}

	created, err := c.Leads.Upsert(ctx, lead)
	if err != nil {
		c.Logger.Error("lead upsert", zap.String("email", lead.Email), zap.Error(err))
		return nil, translate(err, "capture lead")
	}

	c.Logger.Info("lead captured",
		zap.String("id", lead.ID),
		zap.String("source", lead.Source),
		zap.Bool("created", created),
	)
	publish(ctx, c.Events, c.Logger, entity.NewEvent(entity.EventLeadCaptured, lead.ID, lead))
	return &LeadSubmission{Lead: lead, Created: created}, nil
}

func (c *LeadCapture) List(ctx context.Context, page, limit int) (*Page[*entity.Lead], error) {
	page, limit = NormalizePage(page, limit)

	items, err := c.Leads.List(ctx, limit, offsetOf(page, limit))
	if err != nil {
		return nil, translate(err, "list leads")
	}
	total, err := c.Leads.Count(ctx)
	if err != nil {
		return nil, translate(err, "count leads")
	}
	return newPage(items, page, limit, total), nil
}

func (c *LeadCapture) Stats(ctx context.Context) (*LeadStats, error) {
	now := c.Now()
	prevStart, curStart := periodWindows(now, DefaultWindowDays)

	var (
		stats LeadStats
		err   error
	)
	if stats.Total, err = c.Leads.Count(ctx); err != nil {
		return nil, translate(err, "lead stats")
	}
	if stats.CurrentPeriod, err = c.Leads.CountCreatedBetween(ctx, curStart, now); err != nil {
		return nil, translate(err, "lead stats")
	}
	if stats.PreviousPeriod, err = c.Leads.CountCreatedBetween(ctx, prevStart, curStart); err != nil {
		return nil, translate(err, "lead stats")
	}
	if stats.Converted, err = c.Leads.CountConverted(ctx); err != nil {
		return nil, translate(err, "lead stats")
	}
	if stats.ByAttachmentStyle, err = c.Leads.CountByAttachmentStyle(ctx); err != nil {
		return nil, translate(err, "lead stats")
	}
	if stats.ByAttachmentStyle == nil {
		stats.ByAttachmentStyle = map[string]int{}
	}

	stats.GrowthPercent = GrowthPercent(stats.CurrentPeriod, stats.PreviousPeriod)
	stats.ConversionRate = ConversionRate(stats.Converted, stats.Total)
	return &stats, nil
}

// MarkConverted flags the lead with this email, if any.
func (c *LeadCapture) MarkConverted(ctx context.Context, email string) error {
	return translate(c.Leads.MarkConverted(ctx, entity.NormalizeEmail(email)), "mark lead converted")
}
