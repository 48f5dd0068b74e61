// Package mockrouter serves a deterministic stand-in for the routing service
// so the chat and bench commands can be exercised without live credentials.
package mockrouter

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Options shapes the mock's responses. ErrorEveryN injects one structured
// error per N plan requests (0 disables injection); Latency adds a fixed
// delay so the bench percentiles have something to measure.
type Options struct {
	Alias          string
	ModelID        string
	Tier           string
	ConfigRevision string
	PolicyRev      string
	ErrorEveryN    int
	ErrorStatus    int
	ErrorCode      string
	Latency        time.Duration
}

func (o *Options) applyDefaults() {
	if o.Alias == "" {
		o.Alias = "edu-general"
	}
	if o.ModelID == "" {
		o.ModelID = "gpt-5-nano"
	}
	if o.Tier == "" {
		o.Tier = "standard"
	}
	if o.ConfigRevision == "" {
		o.ConfigRevision = "rev-001"
	}
	if o.PolicyRev == "" {
		o.PolicyRev = "pol-001"
	}
	if o.ErrorStatus == 0 {
		o.ErrorStatus = http.StatusTooManyRequests
	}
	if o.ErrorCode == "" {
		o.ErrorCode = "RATE_LIMITED"
	}
}

type Server struct {
	opts    Options
	metrics *Metrics

	served atomic.Int64
}

func New(opts Options) *Server {
	opts.applyDefaults()
	return &Server{opts: opts, metrics: NewMetrics()}
}

func (s *Server) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/route/plan", s.handlePlan)
	r.POST("/keys/generate", s.handleKeygen)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return r
}

type planRequest struct {
	SchemaVersion string `json:"schema_version"`
	RequestID     string `json:"request_id"`
	Alias         string `json:"alias"`
	PrivacyMode   string `json:"privacy_mode"`
}

func (s *Server) handlePlan(c *gin.Context) {
	started := time.Now()
	if s.opts.Latency > 0 {
		time.Sleep(s.opts.Latency)
	}

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.observePlan(http.StatusBadRequest, "none", time.Since(started))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "MALFORMED_REQUEST",
			"message": err.Error(),
		})
		return
	}

	n := s.served.Add(1)
	if s.opts.ErrorEveryN > 0 && n%int64(s.opts.ErrorEveryN) == 0 {
		s.metrics.observePlan(s.opts.ErrorStatus, "none", time.Since(started))
		c.JSON(s.opts.ErrorStatus, gin.H{
			"error":   s.opts.ErrorCode,
			"message": fmt.Sprintf("injected failure for plan request %d", n),
		})
		return
	}

	// First request for an alias is a miss, the rest are hits.
	cacheState := "hit"
	if n == 1 {
		cacheState = "miss"
	}
	routeID := "mock-" + uuid.NewString()

	c.Header("Router-Schema", "1.1")
	c.Header("Router-Latency", fmt.Sprintf("%.3f", float64(time.Since(started))/float64(time.Millisecond)))
	c.Header("Config-Revision", s.opts.ConfigRevision)
	c.Header("Catalog-Revision", "catalog-001")
	c.Header("X-Route-Cache", cacheState)
	c.Header("X-Route-Id", routeID)
	c.Header("X-Resolved-Model", s.opts.ModelID)
	c.Header("X-Route-Tier", s.opts.Tier)
	c.Header("X-Policy-Rev", s.opts.PolicyRev)
	c.Header("X-Content-Used", "summary")
	c.Header("X-Canonical-Model", s.opts.ModelID)

	alias := req.Alias
	if strings.TrimSpace(alias) == "" {
		alias = s.opts.Alias
	}
	maxOut := 512
	c.JSON(http.StatusOK, gin.H{
		"route_id": routeID,
		"upstream": gin.H{
			"base_url": "http://localhost:9099/upstream",
			"model_id": s.opts.ModelID,
			"mode":     "responses",
			"auth_env": "ROUTEPROBE_API_KEY",
			"headers":  gin.H{"X-Alias": alias},
		},
		"limits": gin.H{"max_output_tokens": maxOut},
		"hints": gin.H{
			"tier":           s.opts.Tier,
			"est_cost_micro": 120,
		},
		"prompt_overlays": gin.H{
			"system_overlay": "You are a concise assistant.",
		},
		"canonical":  gin.H{"model": s.opts.ModelID},
		"policy_rev": s.opts.PolicyRev,
	})
	s.metrics.observePlan(http.StatusOK, cacheState, time.Since(started))
}

type keygenRequest struct {
	Label      string   `json:"label"`
	TTLSeconds int64    `json:"ttl_seconds"`
	ExpiresAt  int64    `json:"expires_at"`
	Scopes     []string `json:"scopes"`
}

func (s *Server) handleKeygen(c *gin.Context) {
	var req keygenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "MALFORMED_REQUEST",
			"message": err.Error(),
		})
		return
	}
	label := req.Label
	if label == "" {
		label = "routeprobe"
	}
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{"chat"}
	}
	expires := req.ExpiresAt
	if expires == 0 {
		ttl := req.TTLSeconds
		if ttl <= 0 {
			ttl = 3600
		}
		expires = time.Now().Add(time.Duration(ttl) * time.Second).Unix()
	}

	s.metrics.keysIssued.Inc()
	c.JSON(http.StatusOK, gin.H{
		"id":         "key-" + uuid.NewString()[:8],
		"token":      "rpk-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		"label":      label,
		"scopes":     scopes,
		"expires_at": expires,
	})
}
