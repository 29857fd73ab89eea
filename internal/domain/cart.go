package domain

type CartStatus string

const (
	CartStatusInserted CartStatus = "INSERTED"
	CartStatusFailed   CartStatus = "FAILED"
	CartStatusSent     CartStatus = "SENT"
)

func ParseCartStatus(s string) (CartStatus, bool) {
	switch CartStatus(s) {
	case CartStatusInserted, CartStatusFailed, CartStatusSent:
		return CartStatus(s), true
	}
	return "", false
}

// CartForReceipt aggregates the notices of a multi-notice payment.
// One receipt is produced for the whole cart once every expected
// notice has arrived.
type CartForReceipt struct {
	ID            string       `json:"id"`
	CartPaymentID []string     `json:"cartPaymentId"`
	TotalNotice   int          `json:"totalNotice"`
	Status        CartStatus   `json:"status"`
	InsertedAt    int64        `json:"inserted_at"`
	ReasonError   *ReasonError `json:"reasonError,omitempty"`
}

// IsComplete reports whether every expected notice has been collected.
// Incomplete carts must never be promoted past INSERTED.
func (c *CartForReceipt) IsComplete() bool {
	return len(c.CartPaymentID) == c.TotalNotice
}
