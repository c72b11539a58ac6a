package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/infra/mail"
	"github.com/xavierca1/healing-ledger/internal/infra/queue"
)

var ErrDeliveryExhausted = errors.New("email delivery retries exhausted")

type EmailQueue interface {
	PublishEmailDelivery(ctx context.Context, payload queue.EmailDeliveryPayload) error
}

type Mailer interface {
	SendDelivery(ctx context.Context, msg mail.DeliveryMessage) (providerID string, err error)
}

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialInterval: 2 * time.Second, MaxInterval: 30 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

type EmailDelivery struct {
	Logs            entity.EmailLogRepositoryInterface
	Purchases       entity.PurchaseRepository
	Queue           EmailQueue
	Mailer          Mailer
	Retry           RetryPolicy
	DownloadBaseURL string
	Logger          *zap.Logger
	Now             func() time.Time
}

func NewEmailDelivery(logs entity.EmailLogRepositoryInterface, purchases entity.PurchaseRepository, q EmailQueue, mailer Mailer, retry RetryPolicy, downloadBaseURL string, logger *zap.Logger) *EmailDelivery {
	return &EmailDelivery{
		Logs:            logs,
		Purchases:       purchases,
		Queue:           q,
		Mailer:          mailer,
		Retry:           retry,
		DownloadBaseURL: strings.TrimRight(downloadBaseURL, "/"),
		Logger:          orNop(logger),
		Now:             utcNow,
	}
}

// CreateLog stores the pending EmailLog for a purchase without enqueueing it.
func (d *EmailDelivery) CreateLog(ctx context.Context, detail *entity.PurchaseDetail) (*entity.EmailLog, error) {
	subject := fmt.Sprintf("Your %s is ready", detail.Product.Name)
	log := entity.NewEmailLog(detail.Customer.Email, subject, entity.TemplatePurchaseDelivery, detail.ID)
	if err := d.Logs.Create(ctx, log); err != nil {
		return nil, translate(err, "create email log")
	}
	return log, nil
}

// Enqueue hands the log to the worker queue. A failure leaves the log pending for the sweeper.
func (d *EmailDelivery) Enqueue(ctx context.Context, log *entity.EmailLog) {
	payload := queue.EmailDeliveryPayload{EmailLogID: log.ID}
	if err := d.Queue.PublishEmailDelivery(ctx, payload); err != nil {
		d.Logger.Warn("email enqueue failed, sweeper will retry",
			zap.String("email_log_id", log.ID),
			zap.Error(err),
		)
	}
}

func (d *EmailDelivery) ScheduleDelivery(ctx context.Context, detail *entity.PurchaseDetail) (*entity.EmailLog, error) {
	log, err := d.CreateLog(ctx, detail)
	if err != nil {
		return nil, err
	}
	d.Enqueue(ctx, log)
	return log, nil
}

// RequeueStale re-publishes pending logs not touched since olderThan.
func (d *EmailDelivery) RequeueStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	logs, err := d.Logs.ListStalePending(ctx, d.Now().Add(-staleAfter), limit)
	if err != nil {
		return 0, translate(err, "list stale email logs")
	}

	n := 0
	for _, l := range logs {
		if err := d.Queue.PublishEmailDelivery(ctx, queue.EmailDeliveryPayload{EmailLogID: l.ID}); err != nil {
			return n, &TechnicalError{Code: CodeQueue, Message: "requeue email: " + err.Error(), Err: err}
		}
		n++
	}
	return n, nil
}

// Deliver sends the email behind an EmailLog. Logs already sent are skipped, so
// redelivered queue messages are harmless. Exhausted retries mark the log failed and
// return ErrDeliveryExhausted.
func (d *EmailDelivery) Deliver(ctx context.Context, emailLogID string) error {
	log, err := d.Logs.FindByID(ctx, emailLogID)
	if err != nil {
		return translate(err, "find email log")
	}
	if log.Status.Done() || log.Status == entity.EmailFailed {
		d.Logger.Debug("email already settled", zap.String("email_log_id", log.ID), zap.String("status", string(log.Status)))
		return nil
	}
	if log.PurchaseID == nil {
		return d.fail(ctx, log, errors.New("email log has no purchase"))
	}

	detail, err := d.Purchases.FindDetailByID(ctx, *log.PurchaseID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return d.fail(ctx, log, err)
		}
		return translate(err, "load purchase")
	}
	msg := d.message(log, detail)

	var providerID string
	attempt := func() error {
		if err := d.Logs.RecordAttempt(ctx, log.ID, d.Now()); err != nil {
			return backoff.Permanent(err)
		}
		id, err := d.Mailer.SendDelivery(ctx, msg)
		if err != nil {
			d.Logger.Warn("email send attempt failed", zap.String("email_log_id", log.ID), zap.Error(err))
			return err
		}
		providerID = id
		return nil
	}
	if err := backoff.Retry(attempt, d.Retry.backOff(ctx)); err != nil {
		return d.fail(ctx, log, err)
	}

	if err := d.Logs.UpdateStatus(ctx, log.ID, entity.EmailSent, providerID, ""); err != nil {
		return translate(err, "update email log")
	}
	if err := d.Purchases.MarkEmailSent(ctx, detail.ID); err != nil {
		d.Logger.Error("mark email sent", zap.String("purchase_id", detail.ID), zap.Error(err))
	}

	d.Logger.Info("delivery email sent",
		zap.String("email_log_id", log.ID),
		zap.String("purchase_id", detail.ID),
		zap.String("provider_id", providerID),
	)
	return nil
}

func (d *EmailDelivery) fail(ctx context.Context, log *entity.EmailLog, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := d.Logs.UpdateStatus(ctx, log.ID, entity.EmailFailed, "", cause.Error()); err != nil {
		d.Logger.Error("mark email failed", zap.String("email_log_id", log.ID), zap.Error(err))
	}
	d.Logger.Error("delivery email failed", zap.String("email_log_id", log.ID), zap.Error(cause))
	return fmt.Errorf("%w: %v", ErrDeliveryExhausted, cause)
}

func (d *EmailDelivery) message(log *entity.EmailLog, detail *entity.PurchaseDetail) mail.DeliveryMessage {
	name := ""
	if detail.Customer.Name != nil {
		name = *detail.Customer.Name
	}
	return mail.DeliveryMessage{
		To:           log.To,
		Subject:      log.Subject,
		CustomerName: name,
		ProductName:  detail.Product.Name,
		DownloadURL:  d.downloadURL(detail.Product),
	}
}

// downloadURL resolves the product's file reference. Relative references are joined to
// DownloadBaseURL; products without a file point at the base URL.
func (d *EmailDelivery) downloadURL(p entity.Product) string {
	if p.FileURL == nil || *p.FileURL == "" {
		return d.DownloadBaseURL
	}
	ref := *p.FileURL
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return d.DownloadBaseURL + "/" + strings.TrimLeft(ref, "/")
}

// HandleProviderEvent applies a provider callback. It reports false for event types
// that do not change the log.
func (d *EmailDelivery) HandleProviderEvent(ctx context.Context, eventType, providerID string) (bool, error) {
	var status entity.EmailStatus
	switch eventType {
	case "email.delivered":
		status = entity.EmailDelivered
	case "email.bounced", "email.complained":
		status = entity.EmailBounced
	case "email.failed":
		status = entity.EmailFailed
	default:
		return false, nil
	}
	if strings.TrimSpace(providerID) == "" {
		return false, validation("email_id is required")
	}

	if err := d.Logs.UpdateStatusByProviderID(ctx, providerID, status); err != nil {
		return false, translate(err, "update email status")
	}
	d.Logger.Info("email status updated", zap.String("provider_id", providerID), zap.String("status", string(status)))
	return true, nil
}

func (d *EmailDelivery) List(ctx context.Context, status entity.EmailStatus, page, limit int) (*Page[*entity.EmailLog], error) {
	if status != "" && !status.Valid() {
		return nil, validation("unknown email status " + string(status))
	}
	page, limit = NormalizePage(page, limit)

	items, err := d.Logs.List(ctx, status, limit, offsetOf(page, limit))
	if err != nil {
		return nil, translate(err, "list email logs")
	}
	total, err := d.Logs.Count(ctx, status)
	if err != nil {
		return nil, translate(err, "count email logs")
	}
	return newPage(items, page, limit, total), nil
}
