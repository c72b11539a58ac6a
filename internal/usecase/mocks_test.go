package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/infra/mail"
	"github.com/xavierca1/healing-ledger/internal/infra/queue"
)

type MockProductRepo struct{ mock.Mock }

func (m *MockProductRepo) Create(ctx context.Context, p *entity.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductRepo) Update(ctx context.Context, p *entity.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductRepo) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*entity.Product)
	return p, args.Error(1)
}

func (m *MockProductRepo) FindBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	args := m.Called(ctx, slug)
	p, _ := args.Get(0).(*entity.Product)
	return p, args.Error(1)
}

func (m *MockProductRepo) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	args := m.Called(ctx, slug, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepo) ListActive(ctx context.Context) ([]*entity.Product, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).([]*entity.Product)
	return p, args.Error(1)
}

func (m *MockProductRepo) ListAll(ctx context.Context) ([]*entity.Product, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).([]*entity.Product)
	return p, args.Error(1)
}

func (m *MockProductRepo) StatsWithSales(ctx context.Context) ([]*entity.ProductSalesStats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]*entity.ProductSalesStats)
	return s, args.Error(1)
}

type MockPurchaseRepo struct{ mock.Mock }

func (m *MockPurchaseRepo) Create(ctx context.Context, p *entity.Purchase) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPurchaseRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPurchaseRepo) FindDetailByID(ctx context.Context, id string) (*entity.PurchaseDetail, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*entity.PurchaseDetail)
	return d, args.Error(1)
}

func (m *MockPurchaseRepo) List(ctx context.Context, limit, offset int) ([]*entity.PurchaseDetail, error) {
	args := m.Called(ctx, limit, offset)
	d, _ := args.Get(0).([]*entity.PurchaseDetail)
	return d, args.Error(1)
}

func (m *MockPurchaseRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockPurchaseRepo) ListByCustomer(ctx context.Context, customerID string) ([]*entity.PurchaseDetail, error) {
	args := m.Called(ctx, customerID)
	d, _ := args.Get(0).([]*entity.PurchaseDetail)
	return d, args.Error(1)
}

func (m *MockPurchaseRepo) CountByProduct(ctx context.Context, productID string) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockPurchaseRepo) MarkEmailSent(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPurchaseRepo) UpdateStatus(ctx context.Context, id string, status entity.PurchaseStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockPurchaseRepo) UpdateStatusByPaymentRef(ctx context.Context, ref string, status entity.PurchaseStatus) (int, error) {
	args := m.Called(ctx, ref, status)
	return args.Int(0), args.Error(1)
}

func (m *MockPurchaseRepo) TransitionStatus(ctx context.Context, id string, from, to entity.PurchaseStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockPurchaseRepo) ListByPaymentRef(ctx context.Context, ref string) ([]*entity.PurchaseDetail, error) {
	args := m.Called(ctx, ref)
	d, _ := args.Get(0).([]*entity.PurchaseDetail)
	return d, args.Error(1)
}

func (m *MockPurchaseRepo) ListCompletedSince(ctx context.Context, since time.Time) ([]*entity.Purchase, error) {
	args := m.Called(ctx, since)
	p, _ := args.Get(0).([]*entity.Purchase)
	return p, args.Error(1)
}

type MockCustomerRepo struct{ mock.Mock }

func (m *MockCustomerRepo) Upsert(ctx context.Context, c *entity.Customer) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCustomerRepo) FindByID(ctx context.Context, id string) (*entity.Customer, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*entity.Customer)
	return c, args.Error(1)
}

type MockLeadRepo struct{ mock.Mock }

func (m *MockLeadRepo) Upsert(ctx context.Context, l *entity.Lead) (bool, error) {
	args := m.Called(ctx, l)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeadRepo) List(ctx context.Context, limit, offset int) ([]*entity.Lead, error) {
	args := m.Called(ctx, limit, offset)
	l, _ := args.Get(0).([]*entity.Lead)
	return l, args.Error(1)
}

func (m *MockLeadRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLeadRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	args := m.Called(ctx, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockLeadRepo) CountConverted(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLeadRepo) CountByAttachmentStyle(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(map[string]int)
	return s, args.Error(1)
}

func (m *MockLeadRepo) MarkConverted(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type MockChatRepo struct{ mock.Mock }

func (m *MockChatRepo) Append(ctx context.Context, msg *entity.ChatMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockChatRepo) History(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	h, _ := args.Get(0).([]*entity.ChatMessage)
	return h, args.Error(1)
}

type MockAILeadRepo struct{ mock.Mock }

func (m *MockAILeadRepo) Capture(ctx context.Context, l *entity.AILead) (bool, error) {
	args := m.Called(ctx, l)
	return args.Bool(0), args.Error(1)
}

func (m *MockAILeadRepo) TouchSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	args := m.Called(ctx, sessionID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockAILeadRepo) List(ctx context.Context, limit, offset int) ([]*entity.AILead, error) {
	args := m.Called(ctx, limit, offset)
	l, _ := args.Get(0).([]*entity.AILead)
	return l, args.Error(1)
}

func (m *MockAILeadRepo) Recent(ctx context.Context, limit int) ([]*entity.AILead, error) {
	args := m.Called(ctx, limit)
	l, _ := args.Get(0).([]*entity.AILead)
	return l, args.Error(1)
}

func (m *MockAILeadRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAILeadRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	args := m.Called(ctx, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockAILeadRepo) CountConverted(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAILeadRepo) SumMessageCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAILeadRepo) MarkConverted(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type MockEmailLogRepo struct{ mock.Mock }

func (m *MockEmailLogRepo) Create(ctx context.Context, l *entity.EmailLog) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockEmailLogRepo) FindByID(ctx context.Context, id string) (*entity.EmailLog, error) {
	args := m.Called(ctx, id)
	l, _ := args.Get(0).(*entity.EmailLog)
	return l, args.Error(1)
}

func (m *MockEmailLogRepo) RecordAttempt(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockEmailLogRepo) UpdateStatus(ctx context.Context, id string, status entity.EmailStatus, providerID, lastError string) error {
	return m.Called(ctx, id, status, providerID, lastError).Error(0)
}

func (m *MockEmailLogRepo) UpdateStatusByProviderID(ctx context.Context, providerID string, status entity.EmailStatus) error {
	return m.Called(ctx, providerID, status).Error(0)
}

func (m *MockEmailLogRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*entity.EmailLog, error) {
	args := m.Called(ctx, olderThan, limit)
	l, _ := args.Get(0).([]*entity.EmailLog)
	return l, args.Error(1)
}

func (m *MockEmailLogRepo) List(ctx context.Context, status entity.EmailStatus, limit, offset int) ([]*entity.EmailLog, error) {
	args := m.Called(ctx, status, limit, offset)
	l, _ := args.Get(0).([]*entity.EmailLog)
	return l, args.Error(1)
}

func (m *MockEmailLogRepo) Count(ctx context.Context, status entity.EmailStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, e entity.Event) error {
	return m.Called(ctx, e).Error(0)
}

type MockQueue struct{ mock.Mock }

func (m *MockQueue) PublishEmailDelivery(ctx context.Context, p queue.EmailDeliveryPayload) error {
	return m.Called(ctx, p).Error(0)
}

type MockMailer struct{ mock.Mock }

func (m *MockMailer) SendDelivery(ctx context.Context, msg mail.DeliveryMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func eventOfType(eventType string) any {
	return mock.MatchedBy(func(e entity.Event) bool { return e.Type == eventType })
}
