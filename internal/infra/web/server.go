package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"devportal-billing/internal/infra/logging"
	"devportal-billing/internal/usecase"
)

// Server exposes the checkout endpoint, the gateway webhook and operational
// routes. The gateway client and the use cases are injected so handlers can
// run against fakes in tests.
type Server struct {
	checkoutUC     usecase.CheckoutUseCase
	settlementUC   usecase.SettlementUseCase
	subscriptionUC usecase.SubscriptionUseCase

	jwtSecret     []byte
	webhookSecret string

	log *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	settlementUC usecase.SettlementUseCase,
	subscriptionUC usecase.SubscriptionUseCase,
	jwtSecret string,
	webhookSecret string,
	logger *zerolog.Logger,
) *Server {
	compLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		checkoutUC:     checkoutUC,
		settlementUC:   settlementUC,
		subscriptionUC: subscriptionUC,
		jwtSecret:      []byte(jwtSecret),
		webhookSecret:  webhookSecret,
		log:            &compLog,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/payments", func(r chi.Router) {
		// Inbound settlement notifications authenticate via signature,
		// not via the dashboard session.
		r.Post("/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/", s.handleCreatePayment)
			r.Get("/{sessionID}", s.handleGetPayment)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/v1/subscription", s.handleGetSubscription)
	})

	return r
}

// traceMiddleware lifts the chi request id into the logging context so every
// handler log line carries trace_id.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tid := middleware.GetReqID(r.Context()); tid != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), tid))
		}
		next.ServeHTTP(w, r)
	})
}
