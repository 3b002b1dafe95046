package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) Usage(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, s.quotaSvc.Summarize(principal.User))
}

type subscriptionResponse struct {
	Plan               string     `json:"plan"`
	SubscriptionID     *string    `json:"subscription_id"`
	SubscriptionStatus *string    `json:"subscription_status"`
	PeriodEnd          *time.Time `json:"period_end"`
	BillingCustomerID  *string    `json:"billing_customer_id"`
}

func (s *Server) Subscription(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user := principal.User
	c.JSON(http.StatusOK, subscriptionResponse{
		Plan:               string(user.Plan),
		SubscriptionID:     user.SubscriptionID,
		SubscriptionStatus: user.SubscriptionStatus,
		PeriodEnd:          user.SubscriptionPeriodEnd,
		BillingCustomerID:  user.BillingCustomerID,
	})
}
