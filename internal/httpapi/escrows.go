package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/admin"
	"github.com/halcyonlabs/trustplane/internal/escrow"
	"github.com/halcyonlabs/trustplane/internal/protocol"
)

// EscrowHandler exposes settlement escrows over HTTP.
type EscrowHandler struct {
	svc    *escrow.Service
	admins *admin.Service
	logger *zap.Logger
}

func NewEscrowHandler(svc *escrow.Service, admins *admin.Service, logger *zap.Logger) *EscrowHandler {
	return &EscrowHandler{svc: svc, admins: admins, logger: logger}
}

// Register mounts the escrow routes on the given router group.
func (h *EscrowHandler) Register(rg *gin.RouterGroup) {
	escrows := rg.Group("/escrows")
	{
		escrows.POST("", h.CreateEscrow)
		escrows.GET("/:id", h.GetEscrow)
		escrows.POST("/:id/release", h.ReleaseEscrow)
		escrows.POST("/:id/dispute", h.DisputeEscrow)
		escrows.POST("/:id/refund", h.RefundEscrow)
	}
}

func escrowID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a non-negative integer"})
		return 0, false
	}
	return id, true
}

type createEscrowRequest struct {
	Payee              string `json:"payee"`
	ServiceDescription string `json:"service_description"`
	RiskScore          uint64 `json:"risk_score"`
	SettlementHash     string `json:"settlement_hash"`
	Amount             uint64 `json:"amount"`
}

// CreateEscrow handles POST /escrows. The caller becomes the payer.
func (h *EscrowHandler) CreateEscrow(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req createEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	hash, err := parseDigest(req.SettlementHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settlement hash"})
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), caller, escrow.CreateParams{
		Payee:              protocol.Identity(req.Payee),
		ServiceDescription: req.ServiceDescription,
		RiskScore:          req.RiskScore,
		SettlementHash:     hash,
		Amount:             req.Amount,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	refreshProtocolGauges(c.Request.Context(), h.admins)
	c.JSON(http.StatusCreated, rec)
}

// GetEscrow handles GET /escrows/:id.
func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	id, ok := escrowID(c)
	if !ok {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ReleaseEscrow handles POST /escrows/:id/release.
func (h *EscrowHandler) ReleaseEscrow(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Release(c.Request.Context(), caller, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	recordSettlement("released")
	c.JSON(http.StatusOK, rec)
}

// DisputeEscrow handles POST /escrows/:id/dispute.
func (h *EscrowHandler) DisputeEscrow(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Dispute(c.Request.Context(), caller, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	recordSettlement("disputed")
	c.JSON(http.StatusOK, rec)
}

// RefundEscrow handles POST /escrows/:id/refund.
func (h *EscrowHandler) RefundEscrow(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Refund(c.Request.Context(), caller, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	recordSettlement("refunded")
	c.JSON(http.StatusOK, rec)
}
