package pdf

import (
	"fmt"
	"strconv"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
)

const anonymousDebtor = "ANONIMO"

// TemplateError marks template data that can never be completed by a
// retry: the source biz event is permanently missing a required field.
type TemplateError struct {
	Field string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("error mapping biz event data to template, missing property %s", e.Field)
}

// Template is the document payload sent to the PDF engine. The partial
// variant carries no User block so the payer identity never reaches a
// debtor-only document.
type Template struct {
	ServiceCustomerID string      `json:"serviceCustomerId"`
	Transaction       Transaction `json:"transaction"`
	User              *User       `json:"user,omitempty"`
	Cart              Cart        `json:"cart"`
}

type Transaction struct {
	Timestamp         string `json:"timestamp"`
	Amount            string `json:"amount"`
	PSPName           string `json:"pspName,omitempty"`
	RRN               string `json:"rrn,omitempty"`
	AuthCode          string `json:"authCode,omitempty"`
	PaymentMethod     string `json:"paymentMethod,omitempty"`
	RequestedByDebtor bool   `json:"requestedByDebtor"`
}

type User struct {
	FullName string `json:"fullName,omitempty"`
	TaxCode  string `json:"taxCode,omitempty"`
}

type Cart struct {
	Items []Item `json:"items"`
}

type Item struct {
	RefNumberType  string  `json:"refNumberType"`
	RefNumberValue string  `json:"refNumberValue"`
	Debtor         *Debtor `json:"debtor,omitempty"`
	PayeeName      string  `json:"payeeName,omitempty"`
	Subject        string  `json:"subject,omitempty"`
	Amount         string  `json:"amount"`
}

type Debtor struct {
	FullName string `json:"fullName,omitempty"`
	TaxCode  string `json:"taxCode,omitempty"`
}

// BuildTemplate maps the biz events and the receipt summary into the
// engine payload. generatingDebtor selects the partial variant, which
// suppresses the payer block.
func BuildTemplate(events []domain.BizEvent, generatingDebtor bool, receipt *domain.Receipt) (*Template, error) {
	if len(events) == 0 {
		return nil, &TemplateError{Field: "transaction"}
	}
	first := events[0]

	if receipt.EventID == "" {
		return nil, &TemplateError{Field: "transaction.id"}
	}

	timestamp := transactionTimestamp(&first)
	if timestamp == "" {
		return nil, &TemplateError{Field: "transaction.timestamp"}
	}
	if receipt.EventData == nil || receipt.EventData.Amount == "" {
		return nil, &TemplateError{Field: "transaction.amount"}
	}

	items, err := cartItems(events, receipt)
	if err != nil {
		return nil, err
	}

	template := &Template{
		ServiceCustomerID: receipt.EventID,
		Transaction: Transaction{
			Timestamp:         timestamp,
			Amount:            receipt.EventData.Amount,
			RequestedByDebtor: generatingDebtor,
		},
		Cart: Cart{Items: items},
	}

	if td := first.TransactionDetails; td != nil && td.Transaction != nil {
		template.Transaction.RRN = td.Transaction.RRN
		template.Transaction.AuthCode = td.Transaction.AuthCode
		if td.Transaction.PSP != nil {
			template.Transaction.PSPName = td.Transaction.PSP.BusinessName
		}
	}

	if !generatingDebtor {
		user, err := payerUser(&first)
		if err != nil {
			return nil, err
		}
		template.User = user
	}

	return template, nil
}

func cartItems(events []domain.BizEvent, receipt *domain.Receipt) ([]Item, error) {
	items := make([]Item, 0, len(events))
	for i, event := range events {
		refType, refValue, err := refNumber(&event)
		if err != nil {
			return nil, err
		}

		item := Item{
			RefNumberType:  refType,
			RefNumberValue: refValue,
			Amount:         itemAmount(&event),
		}

		if event.Creditor != nil {
			item.PayeeName = event.Creditor.CompanyName
		}
		if i < len(receipt.EventData.Cart) {
			item.Subject = receipt.EventData.Cart[i].Subject
		}

		if receipt.EventData.DebtorFiscalCode != anonymousDebtor && event.Debtor != nil {
			item.Debtor = &Debtor{
				FullName: event.Debtor.FullName,
				TaxCode:  receipt.EventData.DebtorFiscalCode,
			}
		}

		items = append(items, item)
	}
	return items, nil
}

func refNumber(event *domain.BizEvent) (string, string, error) {
	if event.PaymentInfo == nil {
		return "", "", &TemplateError{Field: "cart.item.refNumber.value"}
	}
	if event.PaymentInfo.NoticeNumber != "" {
		return "codiceAvviso", event.PaymentInfo.NoticeNumber, nil
	}
	if event.PaymentInfo.IUV != "" {
		return "IUV", event.PaymentInfo.IUV, nil
	}
	return "", "", &TemplateError{Field: "cart.item.refNumber.value"}
}

func itemAmount(event *domain.BizEvent) string {
	if event.PaymentInfo != nil && event.PaymentInfo.Amount != "" {
		return event.PaymentInfo.Amount
	}
	if td := event.TransactionDetails; td != nil && td.Transaction != nil && td.Transaction.GrandTotal != 0 {
		return strconv.FormatFloat(float64(td.Transaction.GrandTotal)/100, 'f', 2, 64)
	}
	return "0.00"
}

func payerUser(event *domain.BizEvent) (*User, error) {
	if td := event.TransactionDetails; td != nil && td.User != nil {
		if td.User.FiscalCode == "" {
			return nil, &TemplateError{Field: "user.data.taxCode"}
		}
		return &User{FullName: td.User.FullName, TaxCode: td.User.FiscalCode}, nil
	}
	if event.Payer != nil {
		if event.Payer.EntityUniqueIdentifierValue == "" {
			return nil, &TemplateError{Field: "user.data.taxCode"}
		}
		return &User{FullName: event.Payer.FullName, TaxCode: event.Payer.EntityUniqueIdentifierValue}, nil
	}
	return nil, &TemplateError{Field: "user.data.taxCode"}
}

func transactionTimestamp(event *domain.BizEvent) string {
	if td := event.TransactionDetails; td != nil && td.Transaction != nil && td.Transaction.CreationDate != "" {
		return td.Transaction.CreationDate
	}
	if event.PaymentInfo != nil {
		return event.PaymentInfo.PaymentDateTime
	}
	return ""
}
