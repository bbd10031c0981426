// Package httpapi exposes the chat engine over HTTP.
//
// The JSON surface mirrors what the webtoon frontend consumes: chat turns,
// session lifecycle, destination data, and the safety audit log. All domain
// behavior lives in the engine package; handlers here only translate.
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/daeguwebtoon/chatcore/engine"
	"github.com/daeguwebtoon/chatcore/events"
	"github.com/daeguwebtoon/chatcore/logger"
)

// characterName is the display name attached to every chat payload.
const characterName = "대구-대구"

// Server wires the engine into a gin router.
type Server struct {
	engine  *engine.Engine
	audit   *events.AuditStore
	metrics http.Handler
	limiter *ipLimiter
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithAuditStore exposes the safety audit log on /api/policy/logs.
func WithAuditStore(store *events.AuditStore) Option {
	return func(s *Server) { s.audit = store }
}

// WithMetricsHandler mounts a metrics handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithRateLimit applies a per-client-IP token bucket to the chat endpoints.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) { s.limiter = newIPLimiter(rate.Limit(rps), burst) }
}

// NewServer builds the HTTP server around an engine.
func NewServer(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{engine: eng}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	api := router.Group("/api")
	if s.limiter != nil {
		api.Use(s.limiter.middleware())
	}
	api.POST("/chat", s.handleChat)
	api.POST("/chat/new", s.handleNewChat)
	api.DELETE("/chat/:sessionId", s.handleResetChat)
	api.GET("/chat/:sessionId/info", s.handleSessionInfo)
	api.GET("/spots", s.handleListSpots)
	api.GET("/spots/:spotId", s.handleGetSpot)
	api.POST("/spots/:spotId/visit", s.handleVisitSpot)
	api.POST("/spots/:spotId/arrive", s.handleArriveSpot)
	api.GET("/policy", s.handlePolicy)
	api.GET("/policy/logs", s.handlePolicyLogs)

	router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	s.router = router
	return s
}

// Router returns the underlying gin router.
func (s *Server) Router() *gin.Engine { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs each request at debug level with latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// ipLimiter holds one token bucket per client IP. Buckets are never evicted;
// the map is bounded by the distinct-client count during process lifetime.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[ip] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

func (l *ipLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "요청이 너무 많습니다",
			})
			return
		}
		c.Next()
	}
}
