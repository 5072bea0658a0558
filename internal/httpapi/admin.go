package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/admin"
	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/protocol"
	"github.com/halcyonlabs/trustplane/internal/treasury"
)

// AdminHandler exposes admin operations, protocol stats, treasury accounts,
// and the audit log over HTTP.
type AdminHandler struct {
	admins   *admin.Service
	accounts *treasury.Service
	events   *auditlog.Log
	logger   *zap.Logger
}

func NewAdminHandler(admins *admin.Service, accounts *treasury.Service, events *auditlog.Log, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, accounts: accounts, events: events, logger: logger}
}

// Register mounts the admin, stats, treasury, and audit routes.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	adm := rg.Group("/admin")
	{
		adm.GET("", h.CurrentAdmin)
		adm.POST("/transfer", h.TransferAdmin)
		adm.PUT("/agents/:id/reputation", h.SetReputation)
	}

	rg.GET("/stats", h.Stats)

	t := rg.Group("/treasury")
	{
		t.POST("/deposits", h.Deposit)
		t.POST("/withdrawals", h.Withdraw)
		t.GET("/accounts/:id", h.Balance)
	}

	audit := rg.Group("/audit")
	{
		audit.GET("", h.AuditOverview)
		audit.GET("/entries", h.AuditEntries)
		audit.GET("/entries/:seq", h.AuditEntry)
		audit.GET("/verify", h.AuditVerify)
	}
}

// CurrentAdmin handles GET /admin.
func (h *AdminHandler) CurrentAdmin(c *gin.Context) {
	current, err := h.admins.Current(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": current.String()})
}

type transferAdminRequest struct {
	NewAdmin string `json:"new_admin"`
}

// TransferAdmin handles POST /admin/transfer.
func (h *AdminHandler) TransferAdmin(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req transferAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.admins.Transfer(c.Request.Context(), caller, protocol.Identity(req.NewAdmin)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": req.NewAdmin})
}

type setReputationRequest struct {
	ReputationScore uint64 `json:"reputation_score"`
}

// SetReputation handles PUT /admin/agents/:id/reputation.
func (h *AdminHandler) SetReputation(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req setReputationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	profile, err := h.admins.SetReputation(c.Request.Context(), caller, c.Param("id"), req.ReputationScore)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Stats handles GET /stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admins.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type depositRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// Deposit handles POST /treasury/deposits. Admin only: deposits mirror
// settled inbound payments from the external rail.
func (h *AdminHandler) Deposit(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.accounts.Deposit(c.Request.Context(), caller, protocol.Identity(req.Account), req.Amount); err != nil {
		writeError(c, h.logger, err)
		return
	}

	balance, err := h.accounts.Balance(c.Request.Context(), protocol.Identity(req.Account))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": req.Account, "balance": balance})
}

type withdrawRequest struct {
	Amount uint64 `json:"amount"`
}

// Withdraw handles POST /treasury/withdrawals. Callers withdraw from their
// own account only.
func (h *AdminHandler) Withdraw(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.accounts.Withdraw(c.Request.Context(), caller, req.Amount); err != nil {
		writeError(c, h.logger, err)
		return
	}

	balance, err := h.accounts.Balance(c.Request.Context(), caller)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": caller.String(), "balance": balance})
}

// Balance handles GET /treasury/accounts/:id.
func (h *AdminHandler) Balance(c *gin.Context) {
	account := protocol.Identity(c.Param("id"))
	balance, err := h.accounts.Balance(c.Request.Context(), account)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account.String(), "balance": balance})
}

// AuditOverview handles GET /audit: the chain length and current root.
func (h *AdminHandler) AuditOverview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.events.Len(ctx)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	root, err := h.events.Root(ctx)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": count, "root": root})
}

// AuditEntries handles GET /audit/entries?since=&limit=.
func (h *AdminHandler) AuditEntries(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}

	entries, err := h.events.Entries(c.Request.Context(), since, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []auditlog.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// AuditEntry handles GET /audit/entries/:seq.
func (h *AdminHandler) AuditEntry(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seq must be a non-negative integer"})
		return
	}

	entry, err := h.events.Entry(c.Request.Context(), seq)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// AuditVerify handles GET /audit/verify: walks the full chain and reports
// integrity.
func (h *AdminHandler) AuditVerify(c *gin.Context) {
	if err := h.events.Verify(c.Request.Context()); err != nil {
		h.logger.Warn("audit chain integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
