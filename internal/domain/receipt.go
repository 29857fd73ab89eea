package domain

type ReceiptStatus string

const (
	ReceiptStatusInserted        ReceiptStatus = "INSERTED"
	ReceiptStatusFailed          ReceiptStatus = "FAILED"
	ReceiptStatusNotQueueSent    ReceiptStatus = "NOT_QUEUE_SENT"
	ReceiptStatusGenerated       ReceiptStatus = "GENERATED"
	ReceiptStatusIOErrorToNotify ReceiptStatus = "IO_ERROR_TO_NOTIFY"
	ReceiptStatusIONotified      ReceiptStatus = "IO_NOTIFIED"
)

// ParseReceiptStatus validates a status string coming from a request
// before it is ever forwarded to the store.
func ParseReceiptStatus(s string) (ReceiptStatus, bool) {
	switch ReceiptStatus(s) {
	case ReceiptStatusInserted, ReceiptStatusFailed, ReceiptStatusNotQueueSent,
		ReceiptStatusGenerated, ReceiptStatusIOErrorToNotify, ReceiptStatusIONotified:
		return ReceiptStatus(s), true
	}
	return "", false
}

// Reason error codes recorded on receipts when an adapter call fails.
const (
	ReasonErrorQueue         = 902
	ReasonErrorStore         = 904
	ReasonErrorTokenizerIO   = 800
	ReasonErrorTokenizer     = 801
	ReasonErrorTokenizerData = 802
	ReasonErrorBlobStorage   = 901
	ReasonErrorPDFEngine     = 700
	ReasonErrorTemplate      = 903
)

type ReasonError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ReceiptMetadata points at a rendered document in the object store.
// Once both fields are populated they are never overwritten.
type ReceiptMetadata struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (m *ReceiptMetadata) IsSet() bool {
	return m != nil && m.Name != "" && m.URL != ""
}

type CartItem struct {
	Subject   string `json:"subject,omitempty"`
	PayeeName string `json:"payeeName,omitempty"`
}

// EventData carries the tokenized identifiers and the summary lines a
// rendered receipt is built from. Fiscal codes here are PDV tokens,
// never the clear values.
type EventData struct {
	PayerFiscalCode         string     `json:"payerFiscalCode,omitempty"`
	DebtorFiscalCode        string     `json:"debtorFiscalCode,omitempty"`
	TransactionCreationDate string     `json:"transactionCreationDate,omitempty"`
	Amount                  string     `json:"amount,omitempty"`
	Cart                    []CartItem `json:"cart,omitempty"`
}

type Receipt struct {
	ID                   string           `json:"id"`
	EventID              string           `json:"eventId"`
	Version              string           `json:"version,omitempty"`
	Status               ReceiptStatus    `json:"status"`
	EventData            *EventData       `json:"eventData,omitempty"`
	MdAttach             *ReceiptMetadata `json:"mdAttach,omitempty"`
	MdAttachPayer        *ReceiptMetadata `json:"mdAttachPayer,omitempty"`
	NumRetry             int              `json:"numRetry"`
	NotificationNumRetry int              `json:"notificationNumRetry"`
	ReasonErr            *ReasonError     `json:"reasonErr,omitempty"`
	ReasonErrPayer       *ReasonError     `json:"reasonErrPayer,omitempty"`
	InsertedAt           int64            `json:"inserted_at"`
	GeneratedAt          int64            `json:"generated_at"`
	NotifiedAt           int64            `json:"notified_at"`
	IsCart               bool             `json:"isCart"`
}

// IsStatusValid reports whether the receipt may proceed to the next
// lifecycle step. Multi-step flows re-check this after every step so a
// tokenization or store failure never silently reaches the queue.
func (r *Receipt) IsStatusValid() bool {
	return r.Status != ReceiptStatusFailed && r.Status != ReceiptStatusNotQueueSent
}
