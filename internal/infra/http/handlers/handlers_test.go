package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/infra/database"
	"github.com/xavierca1/healing-ledger/internal/infra/http/middleware"
	"github.com/xavierca1/healing-ledger/internal/infra/mail"
	"github.com/xavierca1/healing-ledger/internal/infra/queue"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type recordingQueue struct {
	mu       sync.Mutex
	payloads []queue.EmailDeliveryPayload
}

func (q *recordingQueue) PublishEmailDelivery(_ context.Context, p queue.EmailDeliveryPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, p)
	return nil
}

type staticMailer struct{ id string }

func (m staticMailer) SendDelivery(context.Context, mail.DeliveryMessage) (string, error) {
	return m.id, nil
}

type testServer struct {
	handler  http.Handler
	queue    *recordingQueue
	delivery *usecase.EmailDelivery
}

func newTestServer(t *testing.T, webhookSecret string, limiter middleware.Limiter) *testServer {
	t.Helper()

	db, err := database.NewDBConnection(database.Options{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	products := database.NewProductRepository(db)
	purchases := database.NewPurchaseRepository(db)
	customers := database.NewCustomerRepository(db)
	leads := database.NewLeadRepository(db)
	chats := database.NewChatRepository(db)
	aiLeads := database.NewAILeadRepository(db)
	emailLogs := database.NewEmailLogRepository(db)

	q := &recordingQueue{}
	retry := usecase.RetryPolicy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	catalog := usecase.NewCatalogService(products, purchases, nil)
	ledger := usecase.NewPurchaseLedger(purchases, nil, nil)
	leadCapture := usecase.NewLeadCapture(leads, nil, nil)
	chat := usecase.NewChatLedger(chats, aiLeads, nil, nil)
	delivery := usecase.NewEmailDelivery(emailLogs, purchases, q, staticMailer{id: "prov-1"}, retry, "https://files.example.com", nil)
	checkout := usecase.NewCheckoutService(customers, products, ledger, delivery, leadCapture, chat, nil)

	rt := Router{
		Products:  NewProductHandler(catalog, nil),
		Purchases: NewPurchaseHandler(ledger, nil),
		Leads:     NewLeadHandler(leadCapture, nil),
		Chat:      NewChatHandler(chat, nil),
		Emails:    NewEmailHandler(delivery, webhookSecret, nil),
		Stripe:    NewStripeWebhookHandler(checkout, webhookSecret, 5*time.Minute, nil),
		Health: NewHealthHandler("test", map[string]Pinger{
			"database": db.PingContext,
			"redis":    nil,
		}),
		Limiter: limiter,
	}
	return &testServer{handler: rt.Handler(), queue: q, delivery: delivery}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createProduct(t *testing.T, slug string, price int64) entity.Product {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/admin/products", map[string]any{
		"slug": slug, "name": "Inner Child Workbook", "price": price, "file_url": "books/" + slug + ".pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[entity.Product](t, rec)
}

func stripeCheckoutEvent(productSlug, email, paymentIntent string, amount int64) map[string]any {
	return map[string]any{
		"id":   "evt_" + paymentIntent,
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":               "cs_" + paymentIntent,
				"amount_total":     amount,
				"currency":         "usd",
				"payment_intent":   paymentIntent,
				"customer":         "cus_123",
				"metadata":         map[string]string{"product_slug": productSlug},
				"customer_details": map[string]string{"email": email, "name": "Ada"},
			},
		},
	}
}

func stripeSessionEvent(eventType, paymentIntent string) map[string]any {
	return map[string]any{
		"id":   "evt_" + eventType,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{"id": "cs_" + paymentIntent, "payment_intent": paymentIntent},
		},
	}
}

func chargeRefundedEvent(paymentIntent string, amount, refunded int64, full bool) map[string]any {
	return map[string]any{
		"type": "charge.refunded",
		"data": map[string]any{"object": map[string]any{
			"payment_intent":  paymentIntent,
			"amount":          amount,
			"amount_refunded": refunded,
			"refunded":        full,
		}},
	}
}

func TestProductRoutes(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := s.createProduct(t, "inner-child", 1999)
	assert.True(t, p.Active)
	assert.Equal(t, "usd", p.Currency)

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/admin/products", map[string]any{"slug": "inner-child", "name": "Other", "price": 10})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, usecase.CodeConflict, decode[errorResponse](t, rec).Error)
	})

	t.Run("invalid body is rejected", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/admin/products", map[string]any{"slug": "Bad Slug", "name": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get by slug", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/products/inner-child", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, p.ID, decode[entity.Product](t, rec).ID)

		rec = s.do(t, http.MethodGet, "/products/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("deactivated products leave the public list", func(t *testing.T) {
		rec := s.do(t, http.MethodPatch, "/admin/products/"+p.ID, map[string]any{"active": false})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(t, http.MethodGet, "/products", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[[]entity.Product](t, rec))

		rec = s.do(t, http.MethodGet, "/admin/products", nil)
		assert.Len(t, decode[[]entity.Product](t, rec), 1)
	})

	t.Run("delete unsold product", func(t *testing.T) {
		other := s.createProduct(t, "shadow-work", 500)
		rec := s.do(t, http.MethodDelete, "/admin/products/"+other.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodDelete, "/admin/products/"+other.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStripeCheckoutFlow(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := s.createProduct(t, "inner-child", 1999)

	rec := s.do(t, http.MethodPost, "/webhooks/stripe", stripeCheckoutEvent("inner-child", "Ada@Example.com", "pi_1", 1999))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, s.queue.payloads, 1)

	rec = s.do(t, http.MethodGet, "/purchases?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[usecase.Page[entity.PurchaseDetail]](t, rec)
	require.Equal(t, 1, page.Total)
	purchase := page.Items[0]
	assert.Equal(t, "ada@example.com", purchase.Customer.Email)
	assert.Equal(t, p.ID, purchase.Product.ID)
	assert.Equal(t, int64(1999), purchase.Amount)
	assert.Equal(t, entity.PurchaseCompleted, purchase.Status)

	t.Run("sold product cannot be deleted", func(t *testing.T) {
		rec := s.do(t, http.MethodDelete, "/admin/products/"+p.ID, nil)
		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	})

	t.Run("delivery and provider callback", func(t *testing.T) {
		require.NoError(t, s.delivery.Deliver(context.Background(), s.queue.payloads[0].EmailLogID))

		rec := s.do(t, http.MethodPost, "/webhooks/email", map[string]any{
			"type": "email.delivered",
			"data": map[string]string{"email_id": "prov-1"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, map[string]bool{"applied": true}, decode[map[string]bool](t, rec))

		rec = s.do(t, http.MethodGet, "/admin/emails?status=delivered", nil)
		logs := decode[usecase.Page[entity.EmailLog]](t, rec)
		require.Len(t, logs.Items, 1)
		assert.Equal(t, "ada@example.com", logs.Items[0].To)

		rec = s.do(t, http.MethodGet, "/customers/"+purchase.CustomerID+"/purchases", nil)
		items := decode[[]entity.PurchaseDetail](t, rec)
		require.Len(t, items, 1)
		assert.True(t, items[0].EmailSent)
	})

	t.Run("partial refund keeps the purchase completed", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/webhooks/stripe", chargeRefundedEvent("pi_1", 1999, 500, false))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(t, http.MethodGet, "/purchases", nil)
		assert.Equal(t, entity.PurchaseCompleted, decode[usecase.Page[entity.PurchaseDetail]](t, rec).Items[0].Status)

		rec = s.do(t, http.MethodGet, "/admin/revenue", nil)
		assert.Equal(t, int64(1999), decode[usecase.RevenueStats](t, rec).TotalRevenue)
	})

	t.Run("full refund", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/webhooks/stripe", chargeRefundedEvent("pi_1", 1999, 1999, true))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(t, http.MethodGet, "/purchases", nil)
		assert.Equal(t, entity.PurchaseRefunded, decode[usecase.Page[entity.PurchaseDetail]](t, rec).Items[0].Status)

		rec = s.do(t, http.MethodPost, "/webhooks/stripe", chargeRefundedEvent("pi_unknown", 100, 100, true))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/webhooks/stripe", stripeCheckoutEvent("missing", "bob@example.com", "pi_2", 100))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ignored event", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/webhooks/stripe", map[string]any{"type": "invoice.paid"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, s.queue.payloads, 1)
	})
}

func TestStripeDelayedPayment(t *testing.T) {
	listPurchases := func(t *testing.T, s *testServer) []entity.PurchaseDetail {
		rec := s.do(t, http.MethodGet, "/purchases", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[usecase.Page[entity.PurchaseDetail]](t, rec).Items
	}
	revenue := func(t *testing.T, s *testServer) usecase.RevenueStats {
		rec := s.do(t, http.MethodGet, "/admin/revenue", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[usecase.RevenueStats](t, rec)
	}
	unpaidCheckout := func(paymentIntent string) map[string]any {
		event := stripeCheckoutEvent("inner-child", "ada@example.com", paymentIntent, 1999)
		event["data"].(map[string]any)["object"].(map[string]any)["payment_status"] = "unpaid"
		return event
	}

	t.Run("unpaid checkout is pending until the payment fails", func(t *testing.T) {
		s := newTestServer(t, "", nil)
		s.createProduct(t, "inner-child", 1999)

		rec := s.do(t, http.MethodPost, "/webhooks/stripe", unpaidCheckout("pi_async"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, s.queue.payloads)

		items := listPurchases(t, s)
		require.Len(t, items, 1)
		assert.Equal(t, entity.PurchasePending, items[0].Status)
		assert.Zero(t, revenue(t, s).PurchaseCount)

		rec = s.do(t, http.MethodPost, "/webhooks/stripe", stripeSessionEvent("checkout.session.async_payment_failed", "pi_async"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		items = listPurchases(t, s)
		require.Len(t, items, 1)
		assert.Equal(t, entity.PurchaseFailed, items[0].Status)
		assert.Empty(t, s.queue.payloads)
		assert.Zero(t, revenue(t, s).TotalRevenue)
	})

	t.Run("unpaid checkout completes when the payment succeeds", func(t *testing.T) {
		s := newTestServer(t, "", nil)
		s.createProduct(t, "inner-child", 1999)

		rec := s.do(t, http.MethodPost, "/webhooks/stripe", unpaidCheckout("pi_async"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		succeeded := stripeSessionEvent("checkout.session.async_payment_succeeded", "pi_async")
		rec = s.do(t, http.MethodPost, "/webhooks/stripe", succeeded)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, s.queue.payloads, 1)

		items := listPurchases(t, s)
		require.Len(t, items, 1)
		assert.Equal(t, entity.PurchaseCompleted, items[0].Status)
		stats := revenue(t, s)
		assert.Equal(t, int64(1999), stats.TotalRevenue)
		assert.Equal(t, 1, stats.PurchaseCount)

		// redelivery settles nothing twice
		rec = s.do(t, http.MethodPost, "/webhooks/stripe", succeeded)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, s.queue.payloads, 1)

		rec = s.do(t, http.MethodPost, "/webhooks/stripe", stripeSessionEvent("checkout.session.async_payment_failed", "pi_async"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, entity.PurchaseCompleted, listPurchases(t, s)[0].Status)
	})

	t.Run("settlement for an unknown payment is acknowledged", func(t *testing.T) {
		s := newTestServer(t, "", nil)
		rec := s.do(t, http.MethodPost, "/webhooks/stripe", stripeSessionEvent("checkout.session.async_payment_failed", "pi_other"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, listPurchases(t, s))
	})
}

func TestStripeWebhookRejectsOversizedBody(t *testing.T) {
	s := newTestServer(t, "whsec_test", nil)

	body := append([]byte(`{"type":"invoice.paid","pad":"`), bytes.Repeat([]byte("x"), maxWebhookBody)...)
	body = append(body, '"', '}')
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decode[errorResponse](t, rec).Error)
}

func TestStripeSignature(t *testing.T) {
	const secret = "whsec_test"
	s := newTestServer(t, secret, nil)
	s.createProduct(t, "inner-child", 1999)

	body, err := json.Marshal(stripeCheckoutEvent("inner-child", "ada@example.com", "pi_1", 1999))
	require.NoError(t, err)

	send := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
		if header != "" {
			req.Header.Set("Stripe-Signature", header)
		}
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}
	sign := func(unix int64, key string) string {
		ts := strconv.FormatInt(unix, 10)
		return "t=" + ts + ",v1=" + hex.EncodeToString(signStripePayload(body, ts, key))
	}
	now := time.Now().Unix()

	assert.Equal(t, http.StatusBadRequest, send("").Code)
	assert.Equal(t, http.StatusBadRequest, send(sign(now, "wrong")).Code)
	assert.Equal(t, http.StatusBadRequest, send(sign(now-3600, secret)).Code)
	assert.Empty(t, s.queue.payloads)

	rec := send(sign(now, secret))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, s.queue.payloads, 1)
}

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0)
	good := hex.EncodeToString(signStripePayload(payload, "1700000000", "secret"))

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"valid", "t=1700000000,v1=" + good, nil},
		{"rotated secret", "t=1700000000,v1=00ff,v1=" + good, nil},
		{"missing", "", errMissingSignature},
		{"no v1", "t=1700000000", errMissingSignature},
		{"bad timestamp", "t=abc,v1=" + good, errMissingSignature},
		{"mismatch", "t=1700000000,v1=deadbeef", errBadSignature},
		{"stale", "t=1699990000,v1=" + good, errStaleSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyStripeSignature(payload, tt.header, "secret", 5*time.Minute, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProviderCallbackSignature(t *testing.T) {
	const secret = "whsec_c2VjcmV0LWtleS1mb3ItdGVzdHM="
	s := newTestServer(t, secret, nil)
	body := []byte(`{"type":"email.opened","data":{"email_id":"prov-1"}}`)

	send := func(id, ts, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/email", bytes.NewReader(body))
		req.Header.Set("svix-id", id)
		req.Header.Set("svix-timestamp", ts)
		req.Header.Set("svix-signature", sig)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}
	sign := func(id string, unix int64, key string) (string, string) {
		ts := strconv.FormatInt(unix, 10)
		return ts, "v1," + base64.StdEncoding.EncodeToString(signProviderPayload(body, id, ts, key))
	}
	now := time.Now().Unix()

	rec := send("", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SIGNATURE", decode[errorResponse](t, rec).Error)

	ts, sig := sign("msg_1", now, "whsec_d3Jvbmc=")
	assert.Equal(t, http.StatusBadRequest, send("msg_1", ts, sig).Code)

	ts, sig = sign("msg_1", now-3600, secret)
	assert.Equal(t, http.StatusBadRequest, send("msg_1", ts, sig).Code)

	ts, sig = sign("msg_1", now, secret)
	assert.Equal(t, http.StatusBadRequest, send("msg_2", ts, sig).Code)

	rec = send("msg_1", ts, "v1,bm9wZQ== "+sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]bool{"applied": false}, decode[map[string]bool](t, rec))
}

func TestVerifyProviderSignature(t *testing.T) {
	payload := []byte(`{"type":"email.delivered"}`)
	now := time.Unix(1_700_000_000, 0)
	good := "v1," + base64.StdEncoding.EncodeToString(signProviderPayload(payload, "msg_1", "1700000000", "whsec_c2VjcmV0"))

	tests := []struct {
		name   string
		id     string
		ts     string
		header string
		want   error
	}{
		{"valid", "msg_1", "1700000000", good, nil},
		{"one of several", "msg_1", "1700000000", "v1,AAAA " + good, nil},
		{"missing id", "", "1700000000", good, errMissingSignature},
		{"bad timestamp", "msg_1", "soon", good, errMissingSignature},
		{"stale", "msg_1", "1699990000", good, errStaleSignature},
		{"unknown version", "msg_1", "1700000000", "v2" + good[2:], errBadSignature},
		{"other message", "msg_2", "1700000000", good, errBadSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyProviderSignature(payload, tt.id, tt.ts, tt.header, "whsec_c2VjcmV0", 5*time.Minute, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLeadRoutes(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec := s.do(t, http.MethodPost, "/leads", map[string]any{
		"email": "ada@example.com", "attachment_style": "anxious", "answers": map[string]any{"q1": "b"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[usecase.LeadSubmission](t, rec)
	assert.True(t, first.Created)
	assert.Equal(t, "quiz", first.Lead.Source)

	rec = s.do(t, http.MethodPost, "/leads", map[string]any{"email": "ADA@example.com", "attachment_style": "secure"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[usecase.LeadSubmission](t, rec).Created)

	rec = s.do(t, http.MethodPost, "/leads", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/leads", nil)
	page := decode[usecase.Page[entity.Lead]](t, rec)
	assert.Equal(t, 1, page.Total)

	rec = s.do(t, http.MethodGet, "/admin/leads/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[usecase.LeadStats](t, rec)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByAttachmentStyle["secure"])
}

func TestChatRoutes(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec := s.do(t, http.MethodPost, "/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decode[map[string]string](t, rec)["session_id"]
	require.NotEmpty(t, sessionID)

	base := "/chat/sessions/" + sessionID
	rec = s.do(t, http.MethodPost, base+"/messages", map[string]string{"role": "user", "content": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, base+"/messages", map[string]string{"role": "assistant", "content": "hi there"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/messages", map[string]string{"role": "system", "content": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/messages", nil)
	history := decode[[]entity.ChatMessage](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, entity.RoleAssistant, history[1].Role)

	rec = s.do(t, http.MethodPost, base+"/lead", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	captured := decode[usecase.AILeadCapture](t, rec)
	assert.Equal(t, int64(1), captured.Lead.MessageCount)

	rec = s.do(t, http.MethodPost, base+"/messages", map[string]string{"role": "user", "content": "more"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/ai-leads/recent?limit=5", nil)
	recent := decode[[]entity.AILead](t, rec)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(2), recent[0].MessageCount)

	rec = s.do(t, http.MethodGet, "/admin/ai-leads/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[usecase.AILeadStats](t, rec).Total)

	rec = s.do(t, http.MethodGet, "/chat/sessions/unknown/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPurchaseAdminRoutes(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := s.createProduct(t, "inner-child", 1999)

	rec := s.do(t, http.MethodPost, "/admin/purchases", map[string]any{"customer_id": "nobody", "product_id": p.ID, "amount": 100})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/webhooks/stripe", stripeCheckoutEvent("inner-child", "ada@example.com", "pi_1", 1999))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	purchase := decode[usecase.Page[entity.PurchaseDetail]](t, s.do(t, http.MethodGet, "/purchases", nil)).Items[0]

	rec = s.do(t, http.MethodPatch, "/admin/purchases/"+purchase.ID+"/status", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPatch, "/admin/purchases/missing/status", map[string]string{"status": "refunded"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/purchases/"+purchase.ID+"/email-sent", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/revenue?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	revenue := decode[usecase.RevenueStats](t, rec)
	assert.Equal(t, 7, revenue.WindowDays)
	assert.Equal(t, int64(1999), revenue.TotalRevenue)
	assert.Equal(t, 1, revenue.PurchaseCount)

	rec = s.do(t, http.MethodGet, "/admin/products/stats", nil)
	stats := decode[[]entity.ProductSalesStats](t, rec)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].PurchaseCount)
}

func TestRateLimitedLeadRoute(t *testing.T) {
	s := newTestServer(t, "", middleware.NewMemoryLimiter(1, time.Minute))

	rec := s.do(t, http.MethodPost, "/leads", map[string]any{"email": "ada@example.com"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/leads", map[string]any{"email": "bob@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Forwarding headers from the client do not open a new bucket.
	req := httptest.NewRequest(http.MethodPost, "/leads", bytes.NewBufferString(`{"email":"eve@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.99")
	req.Header.Set("X-Real-IP", "203.0.113.99")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other routes have their own buckets.
	rec = s.do(t, http.MethodGet, "/products", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["database"])
	assert.Equal(t, "not configured", resp.Dependencies["redis"])

	h := NewHealthHandler("test", map[string]Pinger{
		"rabbitmq": func(context.Context) error { return assert.AnError },
	})
	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
