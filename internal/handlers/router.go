package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contesthub/contesthub-gobackend/internal/gateway"
	"github.com/contesthub/contesthub-gobackend/internal/identity"
	"github.com/contesthub/contesthub-gobackend/internal/metrics"
	"github.com/contesthub/contesthub-gobackend/internal/middleware"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/services"
)

// Deps is everything the router needs. Stub is nil unless the stub payment
// provider is configured.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Verifier identity.Verifier
	Limiter  middleware.Limiter
	DB       Pinger

	Users         *services.UserService
	Contests      *services.ContestService
	Registrations *services.RegistrationService
	Submissions   *services.SubmissionService
	Leaderboard   *services.LeaderboardService

	WebhookSecret string
	Stub          *gateway.Stub
}

func NewRouter(d Deps) *mux.Router {
	userHandler := NewUserHandler(d.Users)
	contestHandler := NewContestHandler(d.Contests)
	paymentHandler := NewPaymentHandler(d.Registrations, d.WebhookSecret)
	submissionHandler := NewSubmissionHandler(d.Submissions)
	leaderboardHandler := NewLeaderboardHandler(d.Leaderboard)
	healthHandler := NewHealthHandler(d.DB)

	auth := middleware.RequireAuth(d.Verifier)
	admin := middleware.RequireRole(d.Users, models.RoleAdmin)
	creator := middleware.RequireRole(d.Users, models.RoleCreator, models.RoleAdmin)
	self := middleware.RequireSelf("email")

	guard := func(h http.HandlerFunc, mws ...mux.MiddlewareFunc) http.Handler {
		return middleware.Chain(h, mws...)
	}

	router := mux.NewRouter()
	router.Use(middleware.RequestID(d.Logger), middleware.Recovery, middleware.RequestLog(d.Metrics))

	router.HandleFunc("/", healthHandler.Root).Methods("GET", "HEAD")
	router.HandleFunc("/healthz", healthHandler.Healthz).Methods("GET")
	if d.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Contests. Literal paths are registered before {id}.
	router.HandleFunc("/contests", contestHandler.ListContests).Methods("GET")
	router.HandleFunc("/contests/popular", contestHandler.Popular).Methods("GET")
	router.Handle("/contests", guard(contestHandler.CreateContest, auth, creator)).Methods("POST")
	router.Handle("/contests/edit/{id}", guard(contestHandler.EditContest, auth)).Methods("PATCH")
	router.Handle("/contests/{id}", guard(contestHandler.GetContest, auth)).Methods("GET")
	router.Handle("/contests/{id}", guard(contestHandler.AdminUpdate, auth, admin)).Methods("PATCH")
	router.Handle("/contests/{id}", guard(contestHandler.DeleteContest, auth)).Methods("DELETE")
	router.Handle("/contests/{id}/reconcile", guard(contestHandler.Reconcile, auth, admin)).Methods("POST")
	router.Handle("/contests/{id}/repair", guard(contestHandler.Repair, auth, admin)).Methods("POST")

	// Users
	router.HandleFunc("/users", userHandler.CreateUser).Methods("POST")
	router.Handle("/users", guard(userHandler.GetUsers, auth, admin)).Methods("GET")
	router.Handle("/users", guard(userHandler.UpdateProfile, auth)).Methods("PATCH")
	router.HandleFunc("/users/stats/{email}", leaderboardHandler.UserStats).Methods("GET")
	router.Handle("/users/{email}", guard(userHandler.GetUser, auth)).Methods("GET")
	router.Handle("/users/{email}/role", guard(userHandler.GetRole, auth)).Methods("GET")
	router.Handle("/users/{id}/role", guard(userHandler.UpdateRole, auth, admin)).Methods("PATCH")

	// Registration and payment
	checkoutMW := []mux.MiddlewareFunc{auth}
	if d.Limiter != nil {
		checkoutMW = append(checkoutMW, middleware.RateLimit(d.Limiter))
	}
	router.Handle("/create-checkout-session", guard(paymentHandler.CreateCheckoutSession, checkoutMW...)).Methods("POST")
	router.Handle("/payment-success", guard(paymentHandler.PaymentSuccess, auth)).Methods("PATCH")
	router.HandleFunc("/webhooks/stripe", paymentHandler.Webhook).Methods("POST")
	if d.Stub != nil {
		router.HandleFunc("/pay/stub", NewStubHandler(d.Stub).Pay).Methods("GET", "POST")
	}

	// Entries and submissions
	router.Handle("/my-participated-contests", guard(submissionHandler.MyParticipated, auth, self)).Methods("GET")
	router.Handle("/contest-registered", guard(submissionHandler.IsRegistered, auth)).Methods("GET")
	router.Handle("/submit-task", guard(submissionHandler.SubmitTask, auth)).Methods("PATCH")
	router.Handle("/contest-entry", guard(submissionHandler.GetEntry, auth)).Methods("GET")
	router.Handle("/contest-registrations/{contestId}", guard(submissionHandler.ListRegistrations, auth)).Methods("GET")

	// Leaderboard
	router.HandleFunc("/leaderboard", leaderboardHandler.Leaderboard).Methods("GET")
	router.HandleFunc("/latest-winners", leaderboardHandler.LatestWinners).Methods("GET")

	return router
}
