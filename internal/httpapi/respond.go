package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/protocol"
)

// statusOf maps a protocol error kind to its HTTP status.
func statusOf(kind protocol.Kind) int {
	switch kind {
	case protocol.KindNotFound:
		return http.StatusNotFound
	case protocol.KindAlreadyExists, protocol.KindWrongState:
		return http.StatusConflict
	case protocol.KindInvalidArgument:
		return http.StatusBadRequest
	case protocol.KindNotAuthorized:
		return http.StatusForbidden
	case protocol.KindExpired:
		return http.StatusGone
	case protocol.KindTransferFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders an engine error. Errors without a protocol kind are
// internal: they get logged and a generic 500, never their raw message.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	kind := protocol.KindOf(err)
	if kind == "" {
		logger.Error("internal error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(statusOf(kind), gin.H{"error": err.Error(), "kind": string(kind)})
}

// writeBindError renders a request decoding failure.
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(protocol.KindInvalidArgument)})
}
