package stub

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mycafe/pkg/logger"
)

// Options configures the stub server.
type Options struct {
	// JWTSecret signs access tokens. Required.
	JWTSecret string

	// TableCount is the number of regular tables to seed.
	TableCount int

	// Logger defaults to logger.Default().
	Logger *logger.Logger
}

// Server is the assembled stub backend.
type Server struct {
	Handler http.Handler

	state *state
	auth  *authService
}

// NewServer builds a seeded stub with the default operator accounts.
func NewServer(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	if opts.TableCount <= 0 {
		opts.TableCount = 8
	}

	st := newState()
	st.seed(opts.TableCount)

	auth := newAuthService(DefaultJWTConfig(opts.JWTSecret))
	if err := auth.addUser("admin", "admin123", "admin"); err != nil {
		return nil, err
	}
	if err := auth.addUser("garson", "garson123", "waiter"); err != nil {
		return nil, err
	}

	s := &Server{state: st, auth: auth}
	s.Handler = s.buildRouter(log)
	return s, nil
}

func (s *Server) buildRouter(log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recovery(log), requestLogger(log), errorHandler(log))

	h := &handlers{state: s.state, auth: s.auth}

	r.GET("/health", h.health)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", h.login)

	authed := v1.Group("")
	authed.Use(requireAuth(s.auth))
	{
		authed.GET("/tables", h.listTables)
		authed.GET("/tables/:id", h.getTable)
		authed.POST("/tables", h.createTable)
		authed.DELETE("/tables/:id", h.deleteTable)

		authed.GET("/products", h.listProducts)

		authed.GET("/invoices/open", h.listOpenInvoices)
		authed.POST("/invoices", h.openInvoice)
		authed.POST("/invoices/transfer", h.transfer)
		authed.GET("/invoices/:id", h.getInvoice)
		authed.POST("/invoices/:id/close", h.closeInvoice)
		authed.POST("/invoices/:id/items", h.addLine)
		authed.PATCH("/invoices/items/:id", h.updateLine)
		authed.DELETE("/invoices/items/:id", h.removeLine)
		authed.POST("/invoices/:id/discount", h.applyDiscount)

		authed.POST("/payments/process", h.processPayment)

		authed.POST("/customers/", h.createCustomer)
		authed.GET("/customers/", h.listCustomers)
		authed.POST("/customers/debt", h.createDebt)
	}
	return r
}
