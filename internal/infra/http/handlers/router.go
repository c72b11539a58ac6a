package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/infra/http/middleware"
)

type Router struct {
	Products       *ProductHandler
	Purchases      *PurchaseHandler
	Leads          *LeadHandler
	Chat           *ChatHandler
	Emails         *EmailHandler
	Stripe         *StripeWebhookHandler
	Health         *HealthHandler
	Limiter        middleware.Limiter
	AllowedOrigins []string
	// TrustProxy rewrites RemoteAddr from forwarding headers. Enable only behind a proxy
	// that overwrites them.
	TrustProxy     bool
	Logger         *zap.Logger
}

func (rt Router) Handler() http.Handler {
	origins := rt.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if rt.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Stripe-Signature"},
		MaxAge:         300,
	}))

	limited := func(h http.HandlerFunc) http.Handler { return h }
	if rt.Limiter != nil {
		rl := middleware.RateLimit(rt.Limiter, rt.Logger)
		limited = func(h http.HandlerFunc) http.Handler { return rl(h) }
	}

	r.Get("/health", rt.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/products", rt.Products.ListActive)
	r.Get("/products/{slug}", rt.Products.GetBySlug)
	r.Get("/purchases", rt.Purchases.List)
	r.Get("/customers/{id}/purchases", rt.Purchases.ListByCustomer)
	r.Method(http.MethodPost, "/leads", limited(rt.Leads.Submit))

	r.Route("/chat/sessions", func(r chi.Router) {
		r.Post("/", rt.Chat.StartSession)
		r.Method(http.MethodPost, "/{id}/messages", limited(rt.Chat.AppendMessage))
		r.Get("/{id}/messages", rt.Chat.History)
		r.Method(http.MethodPost, "/{id}/lead", limited(rt.Chat.CaptureLead))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/products", rt.Products.ListAll)
		r.Post("/products", rt.Products.Create)
		r.Get("/products/stats", rt.Products.Stats)
		r.Patch("/products/{id}", rt.Products.Update)
		r.Delete("/products/{id}", rt.Products.Delete)

		r.Get("/revenue", rt.Purchases.Revenue)
		r.Post("/purchases", rt.Purchases.Record)
		r.Post("/purchases/{id}/email-sent", rt.Purchases.MarkEmailSent)
		r.Patch("/purchases/{id}/status", rt.Purchases.UpdateStatus)

		r.Get("/leads", rt.Leads.List)
		r.Get("/leads/stats", rt.Leads.Stats)
		r.Get("/ai-leads", rt.Chat.ListLeads)
		r.Get("/ai-leads/stats", rt.Chat.LeadStats)
		r.Get("/ai-leads/recent", rt.Chat.RecentLeads)

		r.Get("/emails", rt.Emails.List)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", rt.Stripe.Handle)
		r.Post("/email", rt.Emails.ProviderCallback)
	})

	return r
}
