package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

type RecordPurchaseInput struct {
	CustomerID string                `json:"customer_id"`
	ProductID  string                `json:"product_id"`
	Amount     int64                 `json:"amount"`
	Currency   string                `json:"currency"`
	Status     entity.PurchaseStatus `json:"status"`
	PaymentRef string                `json:"payment_ref"`
}

type StatusChange struct {
	PurchaseID string                `json:"purchase_id,omitempty"`
	PaymentRef string                `json:"payment_ref,omitempty"`
	Status     entity.PurchaseStatus `json:"status"`
}

type PurchaseLedger struct {
	Purchases entity.PurchaseRepository
	Events    entity.EventPublisher
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewPurchaseLedger(purchases entity.PurchaseRepository, events entity.EventPublisher, logger *zap.Logger) *PurchaseLedger {
	return &PurchaseLedger{
		Purchases: purchases,
		Events:    orNoop(events),
		Logger:    orNop(logger),
		Now:       utcNow,
	}
}

// Record stores a purchase as told and returns it joined with customer and product.
// Repeated calls create repeated rows.
func (l *PurchaseLedger) Record(ctx context.Context, input RecordPurchaseInput) (*entity.PurchaseDetail, error) {
	if errs := ValidateRecordPurchase(input); len(errs) > 0 {
		return nil, validationFailure(errs)
	}

	p, err := entity.NewPurchase(input.CustomerID, input.ProductID, input.Amount, input.Currency, input.Status, input.PaymentRef)
	if err != nil {
		return nil, validation(err.Error())
	}

	if err := l.Purchases.Create(ctx, p); err != nil {
		err = translate(err, "record purchase")
		if IsTechnicalError(err) {
			l.Logger.Error("record purchase", zap.String("customer_id", p.CustomerID), zap.Error(err))
		}
		return nil, err
	}

	detail, err := l.Purchases.FindDetailByID(ctx, p.ID)
	if err != nil {
		return nil, translate(err, "load purchase")
	}

	l.Logger.Info("purchase recorded",
		zap.String("id", p.ID),
		zap.String("product_id", p.ProductID),
		zap.String("status", string(p.Status)),
		zap.Int64("amount", p.Amount),
	)
	publish(ctx, l.Events, l.Logger, entity.NewEvent(entity.EventPurchaseRecorded, p.ID, detail))
	return detail, nil
}

// Remove deletes a purchase row. It only serves saga compensation.
func (l *PurchaseLedger) Remove(ctx context.Context, id string) error {
	return translate(l.Purchases.Delete(ctx, id), "remove purchase")
}

func (l *PurchaseLedger) List(ctx context.Context, page, limit int) (*Page[*entity.PurchaseDetail], error) {
	page, limit = NormalizePage(page, limit)

	items, err := l.Purchases.List(ctx, limit, offsetOf(page, limit))
	if err != nil {
		return nil, translate(err, "list purchases")
	}
	total, err := l.Purchases.Count(ctx)
	if err != nil {
		return nil, translate(err, "count purchases")
	}
	return newPage(items, page, limit, total), nil
}

func (l *PurchaseLedger) ListByCustomer(ctx context.Context, customerID string) ([]*entity.PurchaseDetail, error) {
	items, err := l.Purchases.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, translate(err, "list customer purchases")
	}
	if items == nil {
		items = []*entity.PurchaseDetail{}
	}
	return items, nil
}

// MarkEmailSent is idempotent.
func (l *PurchaseLedger) MarkEmailSent(ctx context.Context, id string) error {
	return translate(l.Purchases.MarkEmailSent(ctx, id), "mark email sent")
}

func (l *PurchaseLedger) SetStatus(ctx context.Context, id string, status entity.PurchaseStatus) error {
	if !status.Valid() {
		return validation("status must be pending, completed, failed or refunded")
	}
	if err := l.Purchases.UpdateStatus(ctx, id, status); err != nil {
		return translate(err, "update purchase status")
	}
	publish(ctx, l.Events, l.Logger, entity.NewEvent(entity.EventPurchaseStatusChanged, id,
		StatusChange{PurchaseID: id, Status: status}))
	return nil
}

// SetStatusByPaymentRef updates every purchase carrying the processor reference.
func (l *PurchaseLedger) SetStatusByPaymentRef(ctx context.Context, paymentRef string, status entity.PurchaseStatus) error {
	if !status.Valid() {
		return validation("status must be pending, completed, failed or refunded")
	}
	n, err := l.Purchases.UpdateStatusByPaymentRef(ctx, paymentRef, status)
	if err != nil {
		return translate(err, "update purchase status")
	}
	if n == 0 {
		return notFound("no purchase with payment reference " + paymentRef)
	}
	publish(ctx, l.Events, l.Logger, entity.NewEvent(entity.EventPurchaseStatusChanged, paymentRef,
		StatusChange{PaymentRef: paymentRef, Status: status}))
	return nil
}

// Transition moves a purchase from one status to another and reports whether it moved.
// A purchase no longer in status from is left untouched.
func (l *PurchaseLedger) Transition(ctx context.Context, id string, from, to entity.PurchaseStatus) (bool, error) {
	moved, err := l.Purchases.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return false, translate(err, "transition purchase status")
	}
	if moved {
		publish(ctx, l.Events, l.Logger, entity.NewEvent(entity.EventPurchaseStatusChanged, id,
			StatusChange{PurchaseID: id, Status: to}))
	}
	return moved, nil
}

func (l *PurchaseLedger) ListByPaymentRef(ctx context.Context, paymentRef string) ([]*entity.PurchaseDetail, error) {
	items, err := l.Purchases.ListByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, translate(err, "list purchases by payment reference")
	}
	return items, nil
}

// RevenueStats sums completed purchases in the trailing window of days (30 when days <= 0).
func (l *PurchaseLedger) RevenueStats(ctx context.Context, days int) (*RevenueStats, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	since := l.Now().Add(-time.Duration(days) * 24 * time.Hour)

	purchases, err := l.Purchases.ListCompletedSince(ctx, since)
	if err != nil {
		l.Logger.Error("revenue stats", zap.Error(err))
		return nil, translate(err, "revenue stats")
	}

	stats := &RevenueStats{
		WindowDays:   days,
		Since:        since,
		DailyRevenue: make(map[string]int64),
	}
	for _, p := range purchases {
		stats.TotalRevenue += p.Amount
		stats.PurchaseCount++
		stats.DailyRevenue[DayKey(p.CreatedAt)] += p.Amount
	}
	return stats, nil
}
