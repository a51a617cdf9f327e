// Package httpapi exposes the collaboration service over HTTP/JSON with gin
// and provides the matching client used by pollers and the CLI.
package httpapi

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/collab"
	"github.com/daviddao/potluck/pkg/model"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InviteRequest is the body of POST /api/documents/:id/invitations.
type InviteRequest struct {
	Email   string `json:"email" binding:"required"`
	Message string `json:"message"`
}

// ActivityRequest is the body of POST /api/documents/:id/activity.
type ActivityRequest struct {
	Action  string `json:"action" binding:"required"`
	Details string `json:"details"`
}

// Server holds the HTTP handlers.
type Server struct {
	svc    *collab.Service
	health Pinger
}

// NewRouter builds the gin engine for svc.
func NewRouter(svc *collab.Service, verifier TokenVerifier, health Pinger, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{svc: svc, health: health}

	r := gin.New()
	r.Use(gin.Recovery(), Propagation(), Logging(logger), CORS())
	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	api.Use(Auth(verifier))
	{
		api.POST("/documents/:id/invitations", s.createInvitation)
		api.GET("/documents/:id/invitations", s.listDocumentInvitations)
		api.POST("/invitations/:id/accept", s.respond(model.ActionAccept))
		api.POST("/invitations/:id/decline", s.respond(model.ActionDecline))
		api.GET("/me/invitations", s.listMyInvitations)
		api.POST("/documents/:id/presence", s.heartbeat)
		api.GET("/documents/:id/presence", s.listPresence)
		api.POST("/documents/:id/activity", s.appendActivity)
		api.GET("/documents/:id/sync", s.sync)
	}
	return r
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createInvitation(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, apperr.Wrap(apperr.CodeInvalidArgument, "email is required", err))
		return
	}
	inv, err := s.svc.CreateInvitation(c.Request.Context(), c.Param("id"), caller(c), req.Email, req.Message)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitation": inv})
}

func (s *Server) listDocumentInvitations(c *gin.Context) {
	invs, err := s.svc.ListDocumentInvitations(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invs})
}

func (s *Server) respond(action model.ResponseAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := s.svc.RespondInvitation(c.Request.Context(), c.Param("id"), caller(c), action)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invitation": inv})
	}
}

func (s *Server) listMyInvitations(c *gin.Context) {
	invs, err := s.svc.ListMyPendingInvitations(c.Request.Context(), caller(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invs})
}

func (s *Server) heartbeat(c *gin.Context) {
	if err := s.svc.Heartbeat(c.Request.Context(), c.Param("id"), caller(c)); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listPresence(c *gin.Context) {
	excludeSelf := c.Query("exclude_self") == "true"
	ps, err := s.svc.ListActivePresence(c.Request.Context(), c.Param("id"), caller(c), excludeSelf)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_users": ps})
}

func (s *Server) appendActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, apperr.Wrap(apperr.CodeInvalidArgument, "action is required", err))
		return
	}
	a, err := s.svc.AppendActivity(c.Request.Context(), c.Param("id"), caller(c), req.Action, req.Details)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"activity": a})
}

func (s *Server) sync(c *gin.Context) {
	snap, err := s.svc.GetSyncSnapshot(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
