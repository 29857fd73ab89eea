package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
)

func testEvent() domain.BizEvent {
	return domain.BizEvent{
		ID:       "biz-1",
		Creditor: &domain.Creditor{CompanyName: "Comune di Roma"},
		Debtor:   &domain.Subject{FullName: "Mario Rossi", EntityUniqueIdentifierValue: "RSSMRA80A01H501U"},
		Payer:    &domain.Subject{FullName: "Luigi Bianchi", EntityUniqueIdentifierValue: "BNCLGU80A01H501X"},
		PaymentInfo: &domain.PaymentInfo{
			PaymentDateTime: "2024-01-10T10:00:00",
			Amount:          "120.00",
			NoticeNumber:    "302001234567890123",
			IUV:             "02001234567890123",
		},
		TransactionDetails: &domain.TransactionDetails{
			User: &domain.TransactionUser{FullName: "Luigi Bianchi", FiscalCode: "BNCLGU80A01H501X"},
			Transaction: &domain.Transaction{
				CreationDate: "2024-01-10T10:00:01",
				RRN:          "rrn-123",
				AuthCode:     "auth-456",
				PSP:          &domain.PSP{BusinessName: "Test PSP"},
			},
		},
	}
}

func testReceipt() *domain.Receipt {
	return &domain.Receipt{
		EventID: "biz-1",
		EventData: &domain.EventData{
			PayerFiscalCode:  "BNCLGU80A01H501X",
			DebtorFiscalCode: "RSSMRA80A01H501U",
			Amount:           "120.00",
			Cart:             []domain.CartItem{{Subject: "TARI 2024", PayeeName: "Comune di Roma"}},
		},
	}
}

func TestBuildTemplate_Complete(t *testing.T) {
	tmpl, err := BuildTemplate([]domain.BizEvent{testEvent()}, false, testReceipt())
	require.NoError(t, err)

	assert.Equal(t, "biz-1", tmpl.ServiceCustomerID)
	assert.False(t, tmpl.Transaction.RequestedByDebtor)
	assert.Equal(t, "2024-01-10T10:00:01", tmpl.Transaction.Timestamp)
	assert.Equal(t, "rrn-123", tmpl.Transaction.RRN)
	assert.Equal(t, "Test PSP", tmpl.Transaction.PSPName)

	require.NotNil(t, tmpl.User)
	assert.Equal(t, "BNCLGU80A01H501X", tmpl.User.TaxCode)

	require.Len(t, tmpl.Cart.Items, 1)
	item := tmpl.Cart.Items[0]
	assert.Equal(t, "codiceAvviso", item.RefNumberType)
	assert.Equal(t, "302001234567890123", item.RefNumberValue)
	assert.Equal(t, "TARI 2024", item.Subject)
	require.NotNil(t, item.Debtor)
	assert.Equal(t, "RSSMRA80A01H501U", item.Debtor.TaxCode)
}

func TestBuildTemplate_PartialOmitsUser(t *testing.T) {
	tmpl, err := BuildTemplate([]domain.BizEvent{testEvent()}, true, testReceipt())
	require.NoError(t, err)

	assert.True(t, tmpl.Transaction.RequestedByDebtor)
	assert.Nil(t, tmpl.User)
	require.Len(t, tmpl.Cart.Items, 1)
	assert.NotNil(t, tmpl.Cart.Items[0].Debtor)
}

func TestBuildTemplate_AnonymousDebtorOmitsDebtorBlock(t *testing.T) {
	receipt := testReceipt()
	receipt.EventData.DebtorFiscalCode = "ANONIMO"

	tmpl, err := BuildTemplate([]domain.BizEvent{testEvent()}, false, receipt)
	require.NoError(t, err)

	require.Len(t, tmpl.Cart.Items, 1)
	assert.Nil(t, tmpl.Cart.Items[0].Debtor)
}

func TestBuildTemplate_FallsBackToIUV(t *testing.T) {
	event := testEvent()
	event.PaymentInfo.NoticeNumber = ""

	tmpl, err := BuildTemplate([]domain.BizEvent{event}, false, testReceipt())
	require.NoError(t, err)

	assert.Equal(t, "IUV", tmpl.Cart.Items[0].RefNumberType)
	assert.Equal(t, "02001234567890123", tmpl.Cart.Items[0].RefNumberValue)
}

func TestBuildTemplate_MissingRefNumber(t *testing.T) {
	event := testEvent()
	event.PaymentInfo.NoticeNumber = ""
	event.PaymentInfo.IUV = ""

	_, err := BuildTemplate([]domain.BizEvent{event}, false, testReceipt())

	var tmplErr *TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "cart.item.refNumber.value", tmplErr.Field)
}

func TestBuildTemplate_MissingPayerTaxCode(t *testing.T) {
	event := testEvent()
	event.TransactionDetails.User.FiscalCode = ""
	event.Payer = nil

	_, err := BuildTemplate([]domain.BizEvent{event}, false, testReceipt())

	var tmplErr *TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "user.data.taxCode", tmplErr.Field)
}

func TestBuildTemplate_NoEvents(t *testing.T) {
	_, err := BuildTemplate(nil, false, testReceipt())

	var tmplErr *TemplateError
	assert.ErrorAs(t, err, &tmplErr)
}
