package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/admin"
	"github.com/halcyonlabs/trustplane/internal/anchor"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

// TicketHandler exposes the credential anchor over HTTP.
type TicketHandler struct {
	svc    *anchor.Service
	admins *admin.Service
	logger *zap.Logger
}

func NewTicketHandler(svc *anchor.Service, admins *admin.Service, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{svc: svc, admins: admins, logger: logger}
}

// Register mounts the ticket routes on the given router group.
func (h *TicketHandler) Register(rg *gin.RouterGroup) {
	tickets := rg.Group("/tickets")
	{
		tickets.POST("", h.AnchorTicket)
		tickets.GET("/:hash", h.VerifyTicket)
		tickets.POST("/:hash/revoke", h.RevokeTicket)
	}
	rg.GET("/agents/:id/tickets", h.AgentTickets)
}

type anchorTicketRequest struct {
	TicketHash string `json:"ticket_hash"`
	AgentID    string `json:"agent_id"`
	AuditLevel string `json:"audit_level"`
	ExpiresAt  int64  `json:"expires_at"`
}

// AnchorTicket handles POST /tickets.
func (h *TicketHandler) AnchorTicket(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req anchorTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	hash, err := parseDigest(req.TicketHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket hash"})
		return
	}
	level, ok := parseAuditLevel(req.AuditLevel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audit level"})
		return
	}

	ticket, err := h.svc.Anchor(c.Request.Context(), caller, anchor.AnchorParams{
		TicketHash: hash,
		AgentID:    req.AgentID,
		AuditLevel: level,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	refreshProtocolGauges(c.Request.Context(), h.admins)
	c.JSON(http.StatusCreated, ticket)
}

// VerifyTicket handles GET /tickets/:hash. An unknown hash is not an HTTP
// error: the response carries valid=false and no ticket.
func (h *TicketHandler) VerifyTicket(c *gin.Context) {
	hash, err := digest.Parse(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket hash"})
		return
	}

	valid, ticket, err := h.svc.Verify(c.Request.Context(), hash)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp := gin.H{"valid": valid}
	if ticket != nil {
		resp["ticket"] = ticket
	}
	c.JSON(http.StatusOK, resp)
}

// RevokeTicket handles POST /tickets/:hash/revoke.
func (h *TicketHandler) RevokeTicket(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	hash, err := digest.Parse(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket hash"})
		return
	}

	ticket, err := h.svc.Revoke(c.Request.Context(), caller, hash)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// AgentTickets handles GET /agents/:id/tickets.
func (h *TicketHandler) AgentTickets(c *gin.Context) {
	hashes, err := h.svc.AgentTickets(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if hashes == nil {
		hashes = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"tickets": hashes})
}
