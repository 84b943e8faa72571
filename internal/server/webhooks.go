package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
	fulfillmentdomain "github.com/emberhollow/storefront/internal/fulfillment/domain"
)

// HandleStripeWebhook receives payment provider events. Only a failed
// signature check is reported back as an error; once the delivery is
// authenticated the provider always gets a 200, since its redelivery
// would not help with any downstream failure.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Webhook Error: unable to read body")
		return
	}

	event, err := s.stripeVerifier.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, checkoutdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		c.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	result := s.reconcilerSvc.HandleCheckoutEvent(c.Request.Context(), event)
	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandlePrintfulWebhook receives fulfillment provider events. Unknown
// orders are acknowledged with a warning: the delivery may be a test
// ping or reference an order created outside this system.
func (s *Server) HandlePrintfulWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read body"})
		return
	}

	event, err := s.printfulVerify.ConstructEvent(payload, c.GetHeader("X-Printful-Signature"))
	if err != nil {
		if errors.Is(err, fulfillmentdomain.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	result := s.reconcilerSvc.HandleFulfillmentEvent(c.Request.Context(), event)
	switch {
	case result.MissingOrderID:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing order ID"})
	case !result.OrderFound:
		c.JSON(http.StatusOK, gin.H{"received": true, "warning": "Order not found"})
	default:
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
