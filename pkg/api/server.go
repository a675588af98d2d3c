package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pkolev/warrantyhub/pkg/accounts"
	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/blob"
	"github.com/pkolev/warrantyhub/pkg/middleware"
	"github.com/pkolev/warrantyhub/pkg/observability"
	"github.com/pkolev/warrantyhub/pkg/users"
	"github.com/pkolev/warrantyhub/pkg/warranty"
)

// Server represents the API server
type Server struct {
	router      *mux.Router
	accounts    accounts.Service
	warranties  warranty.Service
	users       users.Service
	sessions    auth.SessionManager
	blobs       blob.Store
	logger      *observability.Logger
	metrics     *observability.Metrics
	registry    *prometheus.Registry
	rateLimiter *middleware.RateLimiter
}

// Options carries the server's dependencies. RateLimiter and Registry are
// optional; everything else is required.
type Options struct {
	Accounts    accounts.Service
	Warranties  warranty.Service
	Users       users.Service
	Sessions    auth.SessionManager
	Blobs       blob.Store
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
	RateLimiter *middleware.RateLimiter
}

// NewServer creates the API server and sets up its routes
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	s := &Server{
		router:      mux.NewRouter(),
		accounts:    opts.Accounts,
		warranties:  opts.Warranties,
		users:       opts.Users,
		sessions:    opts.Sessions,
		blobs:       opts.Blobs,
		logger:      logger,
		metrics:     opts.Metrics,
		registry:    opts.Registry,
		rateLimiter: opts.RateLimiter,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.health).Methods("GET")
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods("GET")
	}

	identity := middleware.NewIdentity(s.sessions, false)

	// Public auth routes
	public := s.router.PathPrefix("/api/v1").Subrouter()
	if s.rateLimiter != nil {
		public.Use(s.rateLimiter.Handler)
	}
	public.HandleFunc("/auth/register", s.register).Methods("POST")
	public.HandleFunc("/auth/login", s.login).Methods("POST")

	// Everything else requires a session
	protected := s.router.PathPrefix("/api/v1").Subrouter()
	protected.Use(identity.Handler)
	if s.rateLimiter != nil {
		protected.Use(s.rateLimiter.Handler)
	}

	protected.HandleFunc("/auth/logout", s.logout).Methods("POST")
	protected.HandleFunc("/auth/me", s.me).Methods("GET")
	protected.HandleFunc("/auth/password", s.changePassword).Methods("PUT")
	protected.HandleFunc("/admin/users/{userID}/password", s.adminResetPassword).Methods("PUT")

	protected.HandleFunc("/accounts", s.createAccount).Methods("POST")
	protected.HandleFunc("/accounts", s.listAccounts).Methods("GET")
	protected.HandleFunc("/accounts/{accountID}", s.getAccount).Methods("GET")
	protected.HandleFunc("/accounts/{accountID}", s.renameAccount).Methods("PUT")
	protected.HandleFunc("/accounts/{accountID}", s.deleteAccount).Methods("DELETE")
	protected.HandleFunc("/accounts/{accountID}/leave", s.leaveAccount).Methods("POST")
	protected.HandleFunc("/accounts/{accountID}/members", s.listMembers).Methods("GET")
	protected.HandleFunc("/accounts/{accountID}/members/details", s.listMemberDetails).Methods("GET")
	protected.HandleFunc("/accounts/{accountID}/members", s.inviteMember).Methods("POST")
	protected.HandleFunc("/members/{membershipID}/role", s.changeRole).Methods("PUT")
	protected.HandleFunc("/members/{membershipID}", s.removeMember).Methods("DELETE")

	protected.HandleFunc("/warranties", s.createWarranty).Methods("POST")
	protected.HandleFunc("/accounts/{accountID}/warranties", s.listWarranties).Methods("GET")
	protected.HandleFunc("/accounts/{accountID}/warranties/status-counts", s.warrantyStatusCounts).Methods("GET")
	protected.HandleFunc("/warranties/{warrantyID}", s.getWarranty).Methods("GET")
	protected.HandleFunc("/warranties/{warrantyID}", s.updateWarranty).Methods("PUT")
	protected.HandleFunc("/warranties/{warrantyID}", s.deleteWarranty).Methods("DELETE")
	protected.HandleFunc("/warranties/{warrantyID}/documents", s.addDocuments).Methods("POST")
	protected.HandleFunc("/documents/{documentID}", s.deleteDocument).Methods("DELETE")

	protected.HandleFunc("/uploads", s.upload).Methods("POST")
	protected.HandleFunc("/uploads/{key:.*}", s.download).Methods("GET")
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
