package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

const DefaultRecentLimit = 10

type AILeadCapture struct {
	Lead    *entity.AILead `json:"lead"`
	Created bool           `json:"created"`
}

type ChatLedger struct {
	Messages entity.ChatRepositoryInterface
	Leads    entity.AILeadRepositoryInterface
	Events   entity.EventPublisher
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewChatLedger(messages entity.ChatRepositoryInterface, leads entity.AILeadRepositoryInterface, events entity.EventPublisher, logger *zap.Logger) *ChatLedger {
	return &ChatLedger{
		Messages: messages,
		Leads:    leads,
		Events:   orNoop(events),
		Logger:   orNop(logger),
		Now:      utcNow,
	}
}

// StartSession issues a new opaque session id. Sessions are not stored; the id only
// groups messages.
func (c *ChatLedger) StartSession() string {
	return ulid.Make().String()
}

func normalizeSessionID(id string) string {
	return strings.TrimSpace(id)
}

func (c *ChatLedger) AppendMessage(ctx context.Context, sessionID string, role entity.ChatRole, content string) (*entity.ChatMessage, error) {
	msg, err := entity.NewChatMessage(normalizeSessionID(sessionID), role, content)
	if err != nil {
		return nil, validation(err.Error())
	}
	msg.CreatedAt = c.Now()

	if err := c.Messages.Append(ctx, msg); err != nil {
		c.Logger.Error("append chat message", zap.String("session_id", msg.SessionID), zap.Error(err))
		return nil, translate(err, "append message")
	}
	return msg, nil
}

// History returns the session's messages oldest first. Unknown sessions yield an empty list.
func (c *ChatLedger) History(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	msgs, err := c.Messages.History(ctx, normalizeSessionID(sessionID))
	if err != nil {
		return nil, translate(err, "chat history")
	}
	if msgs == nil {
		msgs = []*entity.ChatMessage{}
	}
	return msgs, nil
}

// CaptureLead ties an email to a session. A known email gets its message count bumped
// and is moved to the given session.
func (c *ChatLedger) CaptureLead(ctx context.Context, email, sessionID string) (*AILeadCapture, error) {
	if errs := validateEmail("email", email); len(errs) > 0 {
		return nil, validationFailure(errs)
	}
	lead, err := entity.NewAILead(email, normalizeSessionID(sessionID))
	if err != nil {
		return nil, validation(err.Error())
	}
	lead.LastInteraction = c.Now()
	lead.CreatedAt = lead.LastInteraction

	created, err := c.Leads.Capture(ctx, lead)
	if err != nil {
		c.Logger.Error("ai lead capture", zap.String("session_id", lead.SessionID), zap.Error(err))
		return nil, translate(err, "capture ai lead")
	}

	c.Logger.Info("ai lead captured",
		zap.String("id", lead.ID),
		zap.String("session_id", lead.SessionID),
		zap.Bool("created", created),
	)
	publish(ctx, c.Events, c.Logger, entity.NewEvent(entity.EventAILeadCaptured, lead.ID, lead))
	return &AILeadCapture{Lead: lead, Created: created}, nil
}

// RecordActivity bumps the leads attached to the session. It is a no-op for sessions
// without a captured lead.
func (c *ChatLedger) RecordActivity(ctx context.Context, sessionID string) error {
	sessionID = normalizeSessionID(sessionID)
	touched, err := c.Leads.TouchSession(ctx, sessionID, c.Now())
	if err != nil {
		return translate(err, "record chat activity")
	}
	if !touched {
		c.Logger.Debug("no ai lead for session", zap.String("session_id", sessionID))
	}
	return nil
}

func (c *ChatLedger) LeadStats(ctx context.Context) (*AILeadStats, error) {
	now := c.Now()
	prevStart, curStart := periodWindows(now, DefaultWindowDays)

	var (
		stats AILeadStats
		err   error
	)
	if stats.Total, err = c.Leads.Count(ctx); err != nil {
		return nil, translate(err, "ai lead stats")
	}
	if stats.CurrentPeriod, err = c.Leads.CountCreatedBetween(ctx, curStart, now); err != nil {
		return nil, translate(err, "ai lead stats")
	}
	if stats.PreviousPeriod, err = c.Leads.CountCreatedBetween(ctx, prevStart, curStart); err != nil {
		return nil, translate(err, "ai lead stats")
	}
	if stats.Converted, err = c.Leads.CountConverted(ctx); err != nil {
		return nil, translate(err, "ai lead stats")
	}
	if stats.TotalMessages, err = c.Leads.SumMessageCount(ctx); err != nil {
		return nil, translate(err, "ai lead stats")
	}

	stats.GrowthPercent = GrowthPercent(stats.CurrentPeriod, stats.PreviousPeriod)
	stats.ConversionRate = ConversionRate(stats.Converted, stats.Total)
	if stats.Total > 0 {
		stats.AvgMessagesPerLead = round2(float64(stats.TotalMessages) / float64(stats.Total))
	}
	return &stats, nil
}

func (c *ChatLedger) RecentLeads(ctx context.Context, limit int) ([]*entity.AILead, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	leads, err := c.Leads.Recent(ctx, limit)
	if err != nil {
		return nil, translate(err, "recent ai leads")
	}
	if leads == nil {
		leads = []*entity.AILead{}
	}
	return leads, nil
}

func (c *ChatLedger) ListLeads(ctx context.Context, page, limit int) (*Page[*entity.AILead], error) {
	page, limit = NormalizePage(page, limit)

	items, err := c.Leads.List(ctx, limit, offsetOf(page, limit))
	if err != nil {
		return nil, translate(err, "list ai leads")
	}
	total, err := c.Leads.Count(ctx)
	if err != nil {
		return nil, translate(err, "count ai leads")
	}
	return newPage(items, page, limit, total), nil
}

func (c *ChatLedger) MarkConverted(ctx context.Context, email string) error {
	return translate(c.Leads.MarkConverted(ctx, entity.NormalizeEmail(email)), "mark ai lead converted")
}
