package relayserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ciphersync/internal/auth"
	"ciphersync/internal/domain"
	"ciphersync/internal/metrics"
	"ciphersync/internal/relay"
)

// QueryHandler answers a protocol query. The default echoes the request.
type QueryHandler func(req relay.QueryRequest) ([]byte, error)

// Config configures a Server.
type Config struct {
	TokenConfig auth.TokenConfig
	// WellKnown is served as is; an empty WSURL is derived from the request
	// host.
	WellKnown relay.WellKnownDocument
	// AdminToken guards /v1/admin. Empty leaves it open.
	AdminToken string
	Queries    QueryHandler
}

// Server is the development relay.
type Server struct {
	cfg        Config
	challenges *auth.Challenges
	queue      *queue
	hub        *hub
	logger     *zap.Logger
	metrics    *metrics.Metrics

	pushMu sync.RWMutex
	push   map[domain.OwnedIdentity]domain.PushConfiguration
}

// New returns a Server. m may be nil.
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Queries == nil {
		cfg.Queries = func(req relay.QueryRequest) ([]byte, error) { return req.Request, nil }
	}
	return &Server{
		cfg:        cfg,
		challenges: auth.NewChallenges(time.Minute),
		queue:      newQueue(),
		hub:        newHub(),
		logger:     logger.With(zap.String("module", "relayserver")),
		metrics:    m,
		push:       make(map[domain.OwnedIdentity]domain.PushConfiguration),
	}
}

// Router builds the gin engine serving the relay API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET(relay.WellKnownPath, s.wellKnown)

	r.POST("/v1/session/challenge", s.challenge)
	r.POST("/v1/session", s.session)
	r.GET("/v1/ws", s.serveWS)

	protected := r.Group("/v1")
	protected.Use(requireAuth(s.cfg.TokenConfig))
	inbox := protected.Group("/inbox/:owned/messages", requireOwner())
	inbox.GET("", s.listMessages)
	inbox.GET("/:uid/extended", s.extendedPayload)
	inbox.GET("/:uid/attachments/:index", s.attachmentRange)
	inbox.DELETE("/:uid", s.deleteMessage)
	protected.POST("/queries", s.query)
	protected.PUT("/push", s.registerPush)

	admin := r.Group("/v1/admin", requireAdmin(s.cfg.AdminToken))
	admin.POST("/deliver", s.deliver)

	return r
}

// Push returns the push configuration registered for owned.
func (s *Server) Push(owned domain.OwnedIdentity) (domain.PushConfiguration, bool) {
	s.pushMu.RLock()
	defer s.pushMu.RUnlock()
	cfg, ok := s.push[owned]
	return cfg, ok
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
