package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/heirkeeper-server/internal/api/http/handler"
	"github.com/dtroode/heirkeeper-server/internal/api/http/middleware"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// Router wires handlers to routes.
type Router struct {
	owner  *handler.Owner
	heir   *handler.Heir
	admin  *handler.Admin
	health *handler.Health
	auth   *middleware.Authenticate
	logger *logger.Logger

	trustProxyHeaders bool
}

// New creates a new Router. X-Forwarded-For and X-Real-IP are honoured only when trustProxyHeaders is set.
func New(owner *handler.Owner, heir *handler.Heir, admin *handler.Admin, health *handler.Health, auth *middleware.Authenticate, trustProxyHeaders bool, logger *logger.Logger) *Router {
	return &Router{
		owner:  owner,
		heir:   heir,
		admin:  admin,
		health: health,
		auth:   auth,
		logger: logger,

		trustProxyHeaders: trustProxyHeaders,
	}
}

// Register builds the HTTP handler with every route mounted.
func (rt *Router) Register() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewLogging(rt.logger).Handle)
	if rt.trustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)

	r.Get("/livez", rt.health.Livez)
	r.Get("/readyz", rt.health.Readyz)

	r.Route("/dashboard/vault", func(r chi.Router) {
		r.Use(rt.auth.Require(model.RoleOwner))

		r.Post("/", rt.owner.CreateVault)
		r.Get("/", rt.owner.GetVault)
		r.Post("/challenge", rt.owner.IssueChallenge)
		r.Post("/unlock-attestation", rt.owner.SubmitAttestation)
		r.Post("/unlock-failed", rt.owner.ReportFailure)
		r.Put("/heirs/{heirId}/key", rt.owner.ShareHeirKey)
		r.Post("/assets", rt.owner.CreateAsset)
		r.Get("/audit", rt.owner.AuditTrail)
	})

	r.Route("/heir", func(r chi.Router) {
		r.Use(rt.auth.Require(model.RoleHeir))

		r.Put("/keys", rt.heir.SetupKeys)
		r.Post("/verification", rt.heir.BeginVerification)
		r.Post("/verification/confirm", rt.heir.ConfirmVerification)
		r.Post("/vault/initiate", rt.heir.InitiateClaim)
		r.Post("/vault/claim", rt.heir.Claim)
		r.Get("/vault/assets", rt.heir.Assets)
	})

	r.Route("/admin/audit", func(r chi.Router) {
		r.Use(rt.auth.Require(model.RoleAdmin))

		r.Get("/dead-letters", rt.admin.ListDeadLetters)
		r.Post("/dead-letters/{id}/requeue", rt.admin.Requeue)
	})

	return r
}
