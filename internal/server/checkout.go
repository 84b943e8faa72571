package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	checkoutdomain "github.com/emberhollow/storefront/internal/checkout/domain"
)

func (s *Server) HandleCreateCheckout(c *gin.Context) {
	var req checkoutdomain.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.checkoutSvc.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
