package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderWebhookSignature carries the provider's HMAC over the raw body.
const HeaderWebhookSignature = "X-Webhook-Signature"

// maxWebhookBody caps how much of an inbound webhook is read.
const maxWebhookBody = 1 << 20

// PaymentWebhook receives provider events. The body must be consumed raw
// before any parsing so the signature is computed over exactly the bytes
// the provider signed.
func (s *Server) PaymentWebhook(c *gin.Context) {
	if !s.webhookLimiter.Allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
			"code":    "RATE_LIMITED",
			"message": "too many webhook deliveries from this address",
		}})
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	signature := c.GetHeader(HeaderWebhookSignature)
	if err := s.webhookSvc.Handle(c.Request.Context(), rawBody, signature); err != nil {
		s.log.Warn("webhook rejected", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
