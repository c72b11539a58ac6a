package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

// CheckoutInput is a settled checkout as reported by the payment processor.
type CheckoutInput struct {
	Email            string
	Name             string
	StripeCustomerID string
	ProductID        string
	ProductSlug      string
	Amount           int64
	Currency         string
	PaymentRef       string
	Status           entity.PurchaseStatus
}

type CheckoutResult struct {
	Purchase *entity.PurchaseDetail `json:"purchase"`
	EmailLog *entity.EmailLog       `json:"email_log,omitempty"`
}

type CheckoutService struct {
	Customers entity.CustomerRepositoryInterface
	Products  entity.ProductRepositoryInterface
	Ledger    *PurchaseLedger
	Emails    *EmailDelivery
	Leads     *LeadCapture
	AILeads   *ChatLedger
	Logger    *zap.Logger
}

func NewCheckoutService(customers entity.CustomerRepositoryInterface, products entity.ProductRepositoryInterface, ledger *PurchaseLedger, emails *EmailDelivery, leads *LeadCapture, aiLeads *ChatLedger, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		Customers: customers,
		Products:  products,
		Ledger:    ledger,
		Emails:    emails,
		Leads:     leads,
		AILeads:   aiLeads,
		Logger:    orNop(logger),
	}
}

var errAlreadySettled = errors.New("purchase already settled")

// Complete records the purchase of a checkout and schedules its delivery email when it is
// completed. If the email cannot be scheduled the purchase row is removed again. Pending
// and failed checkouts are recorded without an email.
func (s *CheckoutService) Complete(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if errs := ValidateCheckout(input); len(errs) > 0 {
		return nil, validationFailure(errs)
	}
	if input.Status == "" {
		input.Status = entity.PurchaseCompleted
	}

	product, err := s.resolveProduct(ctx, input)
	if err != nil {
		return nil, err
	}

	customer, err := entity.NewCustomer(input.Email, input.Name, input.StripeCustomerID)
	if err != nil {
		return nil, validation(err.Error())
	}
	if err := s.Customers.Upsert(ctx, customer); err != nil {
		s.Logger.Error("customer upsert", zap.String("email", customer.Email), zap.Error(err))
		return nil, translate(err, "upsert customer")
	}

	result := &CheckoutResult{}
	txn := NewTransaction(s.Logger)

	txn.AddStep("record_purchase",
		func(ctx context.Context) error {
			detail, err := s.Ledger.Record(ctx, RecordPurchaseInput{
				CustomerID: customer.ID,
				ProductID:  product.ID,
				Amount:     input.Amount,
				Currency:   input.Currency,
				Status:     input.Status,
				PaymentRef: input.PaymentRef,
			})
			result.Purchase = detail
			return err
		},
		func(ctx context.Context) error {
			return s.Ledger.Remove(ctx, result.Purchase.ID)
		},
	)

	if input.Status == entity.PurchaseCompleted {
		txn.AddStep("create_email_log",
			func(ctx context.Context) error {
				log, err := s.Emails.CreateLog(ctx, result.Purchase)
				result.EmailLog = log
				return err
			},
			nil,
		)
	}

	if err := txn.Execute(ctx); err != nil {
		s.Logger.Error("checkout failed", zap.String("payment_ref", input.PaymentRef), zap.Error(err))
		return nil, err
	}

	if result.EmailLog != nil {
		s.Emails.Enqueue(ctx, result.EmailLog)
	}
	if input.Status == entity.PurchaseCompleted {
		s.markConverted(ctx, customer.Email)
	}

	s.Logger.Info("checkout completed",
		zap.String("purchase_id", result.Purchase.ID),
		zap.String("customer_id", customer.ID),
		zap.String("status", string(input.Status)),
	)
	return result, nil
}

// Settle resolves the pending purchases of a delayed payment to completed or failed.
// Completed ones get their delivery email. Purchases that are no longer pending are skipped,
// so a redelivered event settles nothing twice.
func (s *CheckoutService) Settle(ctx context.Context, paymentRef string, status entity.PurchaseStatus) ([]*CheckoutResult, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return nil, validation("payment reference is required")
	}
	if status != entity.PurchaseCompleted && status != entity.PurchaseFailed {
		return nil, validation("settled status must be completed or failed")
	}

	purchases, err := s.Ledger.ListByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, notFound("no purchase with payment reference " + paymentRef)
	}

	results := []*CheckoutResult{}
	for _, p := range purchases {
		if p.Status != entity.PurchasePending {
			continue
		}
		res, err := s.settle(ctx, p, status)
		if errors.Is(err, errAlreadySettled) {
			continue
		}
		if err != nil {
			s.Logger.Error("settle purchase failed", zap.String("purchase_id", p.ID), zap.Error(err))
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *CheckoutService) settle(ctx context.Context, p *entity.PurchaseDetail, status entity.PurchaseStatus) (*CheckoutResult, error) {
	result := &CheckoutResult{Purchase: p}
	txn := NewTransaction(s.Logger)

	txn.AddStep("settle_purchase",
		func(ctx context.Context) error {
			moved, err := s.Ledger.Transition(ctx, p.ID, entity.PurchasePending, status)
			if err != nil {
				return err
			}
			if !moved {
				return errAlreadySettled
			}
			p.Status = status
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.Ledger.Transition(ctx, p.ID, status, entity.PurchasePending)
			return err
		},
	)

	if status == entity.PurchaseCompleted {
		txn.AddStep("create_email_log",
			func(ctx context.Context) error {
				log, err := s.Emails.CreateLog(ctx, p)
				result.EmailLog = log
				return err
			},
			nil,
		)
	}

	if err := txn.Execute(ctx); err != nil {
		return nil, err
	}

	if result.EmailLog != nil {
		s.Emails.Enqueue(ctx, result.EmailLog)
	}
	if status == entity.PurchaseCompleted {
		s.markConverted(ctx, p.Customer.Email)
	}

	s.Logger.Info("delayed payment settled",
		zap.String("purchase_id", p.ID),
		zap.String("status", string(status)),
	)
	return result, nil
}

// Refund marks every purchase with the payment reference as refunded.
func (s *CheckoutService) Refund(ctx context.Context, paymentRef string) error {
	if strings.TrimSpace(paymentRef) == "" {
		return validation("payment reference is required")
	}
	return s.Ledger.SetStatusByPaymentRef(ctx, paymentRef, entity.PurchaseRefunded)
}

func (s *CheckoutService) resolveProduct(ctx context.Context, input CheckoutInput) (*entity.Product, error) {
	var (
		p   *entity.Product
		err error
	)
	if input.ProductID != "" {
		p, err = s.Products.FindByID(ctx, input.ProductID)
	} else {
		p, err = s.Products.FindBySlug(ctx, input.ProductSlug)
	}
	if err != nil {
		return nil, translate(err, "resolve product")
	}
	return p, nil
}

// markConverted flags quiz and chat leads of a paying customer. Failures are logged only.
func (s *CheckoutService) markConverted(ctx context.Context, email string) {
	if s.Leads != nil {
		if err := s.Leads.MarkConverted(ctx, email); err != nil {
			s.Logger.Warn("mark lead converted", zap.Error(err))
		}
	}
	if s.AILeads != nil {
		if err := s.AILeads.MarkConverted(ctx, email); err != nil {
			s.Logger.Warn("mark ai lead converted", zap.Error(err))
		}
	}
}
