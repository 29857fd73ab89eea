package domain

type ReceiptErrorStatus string

const (
	ReceiptErrorStatusToReview ReceiptErrorStatus = "TO_REVIEW"
	ReceiptErrorStatusReviewed ReceiptErrorStatus = "REVIEWED"
	ReceiptErrorStatusRequeued ReceiptErrorStatus = "REQUEUED"
)

// ReceiptError parks a payload the pipeline could not interpret until
// an operator reviews it. The payload is stored base64-encoded.
type ReceiptError struct {
	ID             string             `json:"id"`
	BizEventID     string             `json:"bizEventId"`
	MessagePayload string             `json:"messagePayload,omitempty"`
	MessageError   string             `json:"messageError,omitempty"`
	Status         ReceiptErrorStatus `json:"status"`
}
