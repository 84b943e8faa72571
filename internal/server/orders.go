package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	orderdomain "github.com/emberhollow/storefront/internal/order/domain"
)

type orderStatusView struct {
	Status         string            `json:"status"`
	CreatedAt      string            `json:"created_at"`
	TotalAmount    int64             `json:"total_amount"`
	Currency       string            `json:"currency"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	TrackingURL    string            `json:"tracking_url,omitempty"`
	Items          []orderStatusItem `json:"items"`
}

type orderStatusItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// HandleGetOrderBySession is the customer-facing status lookup, keyed
// by the checkout session id from the thank-you page. It exposes a
// reduced view of the order.
func (s *Server) HandleGetOrderBySession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.FindBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	view := orderStatusView{
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
	}
	if value, ok := order.Metadata["tracking_number"].(string); ok {
		view.TrackingNumber = value
	}
	if value, ok := order.Metadata["tracking_url"].(string); ok {
		view.TrackingURL = value
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderStatusItem{Name: item.Name, Quantity: item.Quantity})
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) HandleListOrders(c *gin.Context) {
	pageSize := int64(0)
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		pageSize = parsed
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrdersRequest{
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  int32(pageSize),
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) HandleListOrderEvents(c *gin.Context) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.ListEvents(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": order})
}
