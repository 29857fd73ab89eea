package service

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
)

// AnonymousFiscalCode marks a debtor whose identifier is missing or
// could not be tokenized. No debtor document is ever produced for it.
const AnonymousFiscalCode = "ANONIMO"

const ecommerceClientID = "CHECKOUT"

var (
	fiscalCodePattern = regexp.MustCompile(`^[A-Z]{6}[0-9LMNPQRSTUV]{2}[ABCDEHLMPRST][0-9LMNPQRSTUV]{2}[A-Z][0-9LMNPQRSTUV]{3}[A-Z]$`)
	vatNumberPattern  = regexp.MustCompile(`^[0-9]{11}$`)
	remittancePattern = regexp.MustCompile(`/TXT/(.*)`)

	authenticatedOrigins    = []string{"IO", "CHECKOUT", "WISP"}
	unwantedRemittanceInfos = []string{"pagamento multibeneficiario"}
)

// IsValidFiscalCode accepts a personal fiscal code or an 11-digit VAT
// number.
func IsValidFiscalCode(fiscalCode string) bool {
	if fiscalCode == "" {
		return false
	}
	return fiscalCodePattern.MatchString(fiscalCode) || vatNumberPattern.MatchString(fiscalCode)
}

// IsFromAuthenticatedOrigin reports whether the payment was carried out
// through a channel that authenticated the payer. Guest checkout
// payments are explicitly excluded even when the origin matches.
func IsFromAuthenticatedOrigin(event *domain.BizEvent) bool {
	td := event.TransactionDetails
	if td == nil {
		return false
	}

	var origin, clientID string
	if td.Transaction != nil {
		origin = td.Transaction.Origin
	}
	if td.Info != nil {
		clientID = td.Info.ClientID
	}

	isCheckout := strings.EqualFold(origin, ecommerceClientID) || strings.EqualFold(clientID, ecommerceClientID)
	isRegistered := td.User != nil && td.User.Type == domain.UserTypeRegistered
	if isCheckout && !isRegistered {
		return false
	}

	return containsOrigin(origin) || containsOrigin(clientID)
}

func containsOrigin(value string) bool {
	if value == "" {
		return false
	}
	for _, origin := range authenticatedOrigins {
		if origin == value {
			return true
		}
	}
	return false
}

func hasValidFiscalCode(event *domain.BizEvent) bool {
	if event.Debtor != nil && IsValidFiscalCode(event.Debtor.EntityUniqueIdentifierValue) {
		return true
	}

	if IsFromAuthenticatedOrigin(event) {
		if td := event.TransactionDetails; td != nil && td.User != nil && IsValidFiscalCode(td.User.FiscalCode) {
			return true
		}
		if event.Payer != nil && IsValidFiscalCode(event.Payer.EntityUniqueIdentifierValue) {
			return true
		}
	}
	return false
}

// IsCartMod1 detects legacy cart events. Events without a totalNotice
// field are accepted only when the paid amount matches the transaction
// amount, otherwise they belong to an old cart model this service does
// not handle.
func IsCartMod1(event *domain.BizEvent) bool {
	if event.PaymentInfo == nil || event.PaymentInfo.TotalNotice != "" {
		return true
	}
	td := event.TransactionDetails
	if td == nil || td.Transaction == nil {
		return false
	}
	return amountToCents(event.PaymentInfo.Amount) == td.Transaction.Amount
}

// TotalNotice returns the number of notices the event belongs to,
// defaulting to 1 when the field is absent.
func TotalNotice(event *domain.BizEvent) (int, error) {
	if event.PaymentInfo == nil || event.PaymentInfo.TotalNotice == "" {
		return 1, nil
	}
	totalNotice, err := strconv.Atoi(event.PaymentInfo.TotalNotice)
	if err != nil {
		return 0, fmt.Errorf("event %s has an invalid total notice value %q: %w",
			event.ID, event.PaymentInfo.TotalNotice, err)
	}
	return totalNotice, nil
}

// ValidateBizEvent reports why an event cannot produce a receipt, nil
// when it can. Multi-notice events are rejected here because they go
// through the cart flow instead.
func ValidateBizEvent(event *domain.BizEvent, ecommerceFilter bool) error {
	if event == nil {
		return errors.New("event is nil")
	}

	if event.EventStatus != domain.BizEventStatusDone && event.EventStatus != domain.BizEventStatusIngested {
		return fmt.Errorf("event %s discarded because in status %s", event.ID, event.EventStatus)
	}

	if !hasValidFiscalCode(event) {
		return fmt.Errorf("event %s discarded because debtor and payer identifiers are missing or not valid", event.ID)
	}

	if ecommerceFilter && event.TransactionDetails != nil && event.TransactionDetails.Info != nil &&
		event.TransactionDetails.Info.ClientID == ecommerceClientID {
		return fmt.Errorf("event %s discarded because from e-commerce client", event.ID)
	}

	if !IsCartMod1(event) {
		return fmt.Errorf("event %s discarded because it is a legacy cart element or has an invalid amount", event.ID)
	}

	totalNotice, err := TotalNotice(event)
	if err != nil {
		return err
	}
	if totalNotice > 1 {
		return fmt.Errorf("event %s discarded because part of a payment cart (%d total notice)", event.ID, totalNotice)
	}

	return nil
}

// AmountCents extracts the paid amount in euro cents, preferring the
// transaction grand total over the payment info amount.
func AmountCents(event *domain.BizEvent) int64 {
	if td := event.TransactionDetails; td != nil && td.Transaction != nil && td.Transaction.GrandTotal != 0 {
		return td.Transaction.GrandTotal
	}
	if event.PaymentInfo != nil && event.PaymentInfo.Amount != "" {
		return amountToCents(event.PaymentInfo.Amount)
	}
	return 0
}

func amountToCents(amount string) int64 {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(value * 100))
}

// FormatAmount renders cents in the Italian money format, with dots
// grouping thousands and a comma before the decimals.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	integer := strconv.FormatInt(cents/100, 10)
	var groups []string
	for len(integer) > 3 {
		groups = append([]string{integer[len(integer)-3:]}, groups...)
		integer = integer[:len(integer)-3]
	}
	groups = append([]string{integer}, groups...)

	return fmt.Sprintf("%s%s,%02d", sign, strings.Join(groups, "."), cents%100)
}

// ItemSubject extracts the payment subject, falling back to the
// remittance information of the largest transfer when the payment info
// carries none.
func ItemSubject(event *domain.BizEvent) string {
	if event.PaymentInfo != nil && event.PaymentInfo.RemittanceInformation != "" &&
		!isUnwantedRemittanceInfo(event.PaymentInfo.RemittanceInformation) {
		return event.PaymentInfo.RemittanceInformation
	}

	var largest float64
	var remittanceInfo string
	for _, transfer := range event.TransferList {
		amount, err := strconv.ParseFloat(transfer.Amount, 64)
		if err != nil {
			continue
		}
		if largest < amount {
			largest = amount
			remittanceInfo = transfer.RemittanceInformation
		}
	}
	return formatRemittanceInformation(remittanceInfo)
}

func isUnwantedRemittanceInfo(remittanceInfo string) bool {
	for _, unwanted := range unwantedRemittanceInfos {
		if unwanted == remittanceInfo {
			return true
		}
	}
	return false
}

func formatRemittanceInformation(remittanceInfo string) string {
	if match := remittancePattern.FindStringSubmatch(remittanceInfo); match != nil {
		return match[1]
	}
	return remittanceInfo
}

// TransactionCreationDate prefers the authenticated transaction
// creation date over the payment timestamp.
func TransactionCreationDate(event *domain.BizEvent) string {
	if td := event.TransactionDetails; td != nil && td.Transaction != nil {
		return td.Transaction.CreationDate
	}
	if event.PaymentInfo != nil {
		return event.PaymentInfo.PaymentDateTime
	}
	return ""
}
