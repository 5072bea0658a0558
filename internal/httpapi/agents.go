package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/admin"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/internal/registry"
	"github.com/halcyonlabs/trustplane/pkg/digest"
)

// AgentHandler exposes the agent registry over HTTP.
type AgentHandler struct {
	svc    *registry.Service
	admins *admin.Service
	logger *zap.Logger
}

func NewAgentHandler(svc *registry.Service, admins *admin.Service, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{svc: svc, admins: admins, logger: logger}
}

// Register mounts the agent routes on the given router group.
func (h *AgentHandler) Register(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.POST("", h.RegisterAgent)
		agents.GET("", h.ListAgents)
		agents.GET("/:id", h.GetAgent)
		agents.PATCH("/:id", h.UpdateAgent)
		agents.POST("/:id/kill-switch", h.SetKillSwitch)
		agents.POST("/:id/deactivate", h.DeactivateAgent)
		agents.GET("/:id/trust", h.VerifyTrust)
		agents.GET("/:id/active", h.IsActive)
	}
}

type registerAgentRequest struct {
	AgentID         string `json:"agent_id"`
	AuditLevel      string `json:"audit_level"`
	MaxOpValue      uint64 `json:"max_op_value"`
	MaxOpsPerHour   uint64 `json:"max_ops_per_hour"`
	RequiresX402    bool   `json:"requires_x402"`
	ReputationScore uint64 `json:"reputation_score"`
	ConstraintsHash string `json:"constraints_hash"`
}

// parseAuditLevel maps the wire value to a level, defaulting to bronze when
// absent.
func parseAuditLevel(s string) (protocol.AuditLevel, bool) {
	if s == "" {
		return protocol.LevelBronze, true
	}
	level := protocol.AuditLevel(s)
	return level, level.Valid()
}

// parseDigest decodes an optional hex digest field; empty means zero.
func parseDigest(s string) (digest.Digest, error) {
	if s == "" {
		return digest.Zero, nil
	}
	return digest.Parse(s)
}

// RegisterAgent handles POST /agents.
func (h *AgentHandler) RegisterAgent(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	level, ok := parseAuditLevel(req.AuditLevel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audit level"})
		return
	}
	hash, err := parseDigest(req.ConstraintsHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid constraints hash"})
		return
	}

	profile, err := h.svc.Register(c.Request.Context(), caller, registry.RegisterParams{
		AgentID:         req.AgentID,
		AuditLevel:      level,
		MaxOpValue:      req.MaxOpValue,
		MaxOpsPerHour:   req.MaxOpsPerHour,
		RequiresX402:    req.RequiresX402,
		ReputationScore: req.ReputationScore,
		ConstraintsHash: hash,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	refreshProtocolGauges(c.Request.Context(), h.admins)
	c.JSON(http.StatusCreated, profile)
}

// ListAgents handles GET /agents. With ?owner= it lists that owner's agents,
// otherwise every registered agent id.
func (h *AgentHandler) ListAgents(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		ids []string
		err error
	)
	if owner := c.Query("owner"); owner != "" {
		ids, err = h.svc.OwnerAgents(ctx, protocol.Identity(owner))
	} else {
		ids, err = h.svc.List(ctx)
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": ids})
}

// GetAgent handles GET /agents/:id.
func (h *AgentHandler) GetAgent(c *gin.Context) {
	profile, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type updateAgentRequest struct {
	AuditLevel      string `json:"audit_level"`
	MaxOpValue      uint64 `json:"max_op_value"`
	MaxOpsPerHour   uint64 `json:"max_ops_per_hour"`
	ReputationScore uint64 `json:"reputation_score"`
	ConstraintsHash string `json:"constraints_hash"`
}

// UpdateAgent handles PATCH /agents/:id. The kill switch, active flag, and
// x402 requirement are not updatable here.
func (h *AgentHandler) UpdateAgent(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req updateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	level, ok := parseAuditLevel(req.AuditLevel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audit level"})
		return
	}
	hash, err := parseDigest(req.ConstraintsHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid constraints hash"})
		return
	}

	profile, err := h.svc.Update(c.Request.Context(), caller, registry.UpdateParams{
		AgentID:         c.Param("id"),
		AuditLevel:      level,
		MaxOpValue:      req.MaxOpValue,
		MaxOpsPerHour:   req.MaxOpsPerHour,
		ReputationScore: req.ReputationScore,
		ConstraintsHash: hash,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type killSwitchRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetKillSwitch handles POST /agents/:id/kill-switch.
func (h *AgentHandler) SetKillSwitch(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	profile, err := h.svc.SetKillSwitch(c.Request.Context(), caller, c.Param("id"), *req.Active)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeactivateAgent handles POST /agents/:id/deactivate.
func (h *AgentHandler) DeactivateAgent(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	profile, err := h.svc.Deactivate(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// VerifyTrust handles GET /agents/:id/trust?op_value=N. The verdict is part
// of the response, never an HTTP error: an untrusted agent is a 200 with
// trusted=false.
func (h *AgentHandler) VerifyTrust(c *gin.Context) {
	opValue, err := strconv.ParseUint(c.DefaultQuery("op_value", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "op_value must be a non-negative integer"})
		return
	}

	trusted, reason, err := h.svc.VerifyTrust(c.Request.Context(), c.Param("id"), opValue)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trusted": trusted, "reason": reason})
}

// IsActive handles GET /agents/:id/active.
func (h *AgentHandler) IsActive(c *gin.Context) {
	active, err := h.svc.IsActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active})
}
