package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
	subscriptiondomain "github.com/keshav-const/promptlens-sub000/internal/subscription/domain"
)

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
	Plan      string `json:"plan"`
}

// VerifyPayment confirms a checkout synchronously: the client posts the
// provider's order, payment, and signature, and on success the
// subscription is activated without waiting for the webhook.
func (s *Server) VerifyPayment(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if strings.TrimSpace(req.OrderID) == "" ||
		strings.TrimSpace(req.PaymentID) == "" ||
		strings.TrimSpace(req.Signature) == "" {
		AbortWithError(c, subscriptiondomain.ErrMissingData)
		return
	}

	user, err := s.subscriptionSvc.VerifyPayment(c.Request.Context(), subscriptiondomain.VerifyPaymentRequest{
		OrderID:   strings.TrimSpace(req.OrderID),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Signature: strings.TrimSpace(req.Signature),
		Email:     principal.User.Email,
		Plan:      identitydomain.Plan(strings.TrimSpace(req.Plan)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "verified",
		"plan":   user.Plan,
	})
}
