package pdf

import (
	"context"
	"io"
)

type ReceiptItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

type ReceiptData struct {
	OrderNumber   string
	DatePaid      string
	CustomerName  string
	CustomerEmail string
	ShipToName    string
	ShipToAddress string
	Total         string
	Items         []ReceiptItem
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}
