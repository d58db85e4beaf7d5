package bridge

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alex2liv/metabridge-API/internal/auth"
	"github.com/alex2liv/metabridge-API/internal/session"
)

// createSessionRequest is the POST /api/sessions payload.
type createSessionRequest struct {
	Name string `json:"name"`
}

// updateSessionRequest is the PUT /api/sessions/:id payload. A raw
// state value is never accepted; transitions happen through named
// triggers only.
type updateSessionRequest struct {
	Name        string `json:"name"`
	Trigger     string `json:"trigger"`
	PhoneNumber string `json:"phone"`
	Code        string `json:"code"`
}

// RegisterRoutes installs the health and session API surface.
func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": "metabridge-api",
			"version":   "0.1.0",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":     true,
			"uptime":    time.Since(s.appeared).String(),
			"component": "metabridge-api",
			"version":   "0.1.0",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	if token := strings.TrimSpace(s.svc.cfg.APIToken); token != "" {
		api.Use(auth.Middleware(auth.StaticToken{Token: token}))
	}

	api.GET("/sessions", func(c *gin.Context) {
		sessions := s.svc.List()
		// Listing never exposes live pairing codes.
		for i := range sessions {
			sessions[i].PairingCode = ""
			sessions[i].PairingExpiresAt = time.Time{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	api.POST("/sessions", func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		sess, err := s.svc.Create(req.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sess)
	})

	api.GET("/sessions/:id", func(c *gin.Context) {
		sess, err := s.svc.Get(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	})

	api.POST("/sessions/:id/pair", func(c *gin.Context) {
		sess, err := s.svc.StartPairing(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"qrCode":    sess.PairingCode,
			"expiresAt": sess.PairingExpiresAt,
		})
	})

	api.DELETE("/sessions/:id/pair", func(c *gin.Context) {
		if err := s.svc.InvalidatePairing(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	api.PUT("/sessions/:id", func(c *gin.Context) {
		var req updateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Trigger) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name or trigger is required"})
			return
		}

		id := c.Param("id")
		var (
			sess session.Session
			err  error
		)
		// The trigger goes first so a rejected transition leaves the
		// session fully untouched, rename included.
		if raw := strings.TrimSpace(req.Trigger); raw != "" {
			trigger, ok := session.ParseTrigger(raw)
			if !ok || !externallyDeliverable(trigger) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or reserved trigger: " + raw})
				return
			}
			sess, err = s.svc.Deliver(id, trigger, DeliverArgs{
				PhoneNumber: req.PhoneNumber,
				Code:        req.Code,
			})
			if err != nil {
				respondError(c, err)
				return
			}
		}
		if strings.TrimSpace(req.Name) != "" {
			if sess, err = s.svc.Rename(id, req.Name); err != nil {
				respondError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, sess)
	})

	api.POST("/sessions/:id/reconnect", func(c *gin.Context) {
		sess, err := s.svc.Deliver(c.Param("id"), session.TriggerManualReconnect, DeliverArgs{})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	})

	api.DELETE("/sessions/:id", func(c *gin.Context) {
		if err := s.svc.Delete(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

// externallyDeliverable rejects triggers owned by the sweeps or mapped
// to dedicated endpoints.
func externallyDeliverable(trigger session.Trigger) bool {
	switch trigger {
	case session.TriggerPairingSucceeded,
		session.TriggerHeartbeatLost,
		session.TriggerHeartbeatRestored,
		session.TriggerManualReconnect:
		return true
	}
	return false
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidName), errors.Is(err, session.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrStalePairingCode),
		errors.Is(err, session.ErrPairingCodeExpired):
		return http.StatusConflict
	case errors.Is(err, ErrPairingRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
