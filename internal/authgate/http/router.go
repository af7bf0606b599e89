package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lumeos/authgate/internal/authgate/service"
	"github.com/lumeos/authgate/internal/authgate/store"
	"github.com/lumeos/authgate/pkg/httpx"
	"github.com/lumeos/authgate/pkg/idpclient"
	"github.com/lumeos/authgate/pkg/slogx"

	_ "github.com/lumeos/authgate/api/authgate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	idp          *idpclient.Client
	store        store.Store
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	AuthService *service.AuthService
}

func NewRouter(
	idp *idpclient.Client,
	st store.Store,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		idp:          idp,
		store:        st,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMFA()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Authgate API
//	@version		0.1.0
//	@description	Credential and TOTP MFA orchestration gateway. Primary credentials and MFA
//	@description	factors live at an external identity provider; this service decides per login
//	@description	attempt whether to issue a session, start an MFA challenge, or demand enrollment.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Provider-issued access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Auth: r.AuthService}
	r.Mux.Handle("POST /auth/login", login)

	me := httpx.Chain(&MeHandler{Auth: r.AuthService},
		AuthnMiddleware(r.idp),
	)
	r.Mux.Handle("GET /auth/me", me)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{Auth: r.AuthService}

	guard := AuthnMiddleware(r.idp)

	r.Mux.Handle("POST /auth/mfa/verify", httpx.Chain(http.HandlerFunc(h.HandleVerify), guard))
	r.Mux.Handle("POST /auth/mfa/enroll", httpx.Chain(http.HandlerFunc(h.HandleEnroll), guard))
	r.Mux.Handle("DELETE /auth/mfa/unenroll", httpx.Chain(http.HandlerFunc(h.HandleUnenroll), guard))
	r.Mux.Handle("GET /auth/mfa/factors", httpx.Chain(http.HandlerFunc(h.HandleListFactors), guard))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
