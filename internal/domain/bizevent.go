package domain

// BizEvent is the immutable upstream payment record. It is never
// mutated by this service, only read while building receipts.
type BizEvent struct {
	ID                 string              `json:"id"`
	Version            string              `json:"version,omitempty"`
	EventStatus        BizEventStatus      `json:"eventStatus"`
	Debtor             *Subject            `json:"debtor,omitempty"`
	Payer              *Subject            `json:"payer,omitempty"`
	Creditor           *Creditor           `json:"creditor,omitempty"`
	PaymentInfo        *PaymentInfo        `json:"paymentInfo,omitempty"`
	TransferList       []Transfer          `json:"transferList,omitempty"`
	TransactionDetails *TransactionDetails `json:"transactionDetails,omitempty"`
}

type BizEventStatus string

const (
	BizEventStatusDone     BizEventStatus = "DONE"
	BizEventStatusIngested BizEventStatus = "INGESTED"
)

type Subject struct {
	FullName                    string `json:"fullName,omitempty"`
	EntityUniqueIdentifierType  string `json:"entityUniqueIdentifierType,omitempty"`
	EntityUniqueIdentifierValue string `json:"entityUniqueIdentifierValue,omitempty"`
}

type Creditor struct {
	IDPA        string `json:"idPA,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	OfficeName  string `json:"officeName,omitempty"`
}

type PaymentInfo struct {
	PaymentDateTime       string `json:"paymentDateTime,omitempty"`
	Amount                string `json:"amount,omitempty"`
	Fee                   string `json:"fee,omitempty"`
	TotalNotice           string `json:"totalNotice,omitempty"`
	RemittanceInformation string `json:"remittanceInformation,omitempty"`
	NoticeNumber          string `json:"noticeNumber,omitempty"`
	IUV                   string `json:"IUV,omitempty"`
}

type Transfer struct {
	IDTransfer            string `json:"idTransfer,omitempty"`
	FiscalCodePA          string `json:"fiscalCodePA,omitempty"`
	CompanyName           string `json:"companyName,omitempty"`
	Amount                string `json:"amount,omitempty"`
	RemittanceInformation string `json:"remittanceInformation,omitempty"`
}

type TransactionDetails struct {
	User        *TransactionUser `json:"user,omitempty"`
	Transaction *Transaction     `json:"transaction,omitempty"`
	Info        *InfoTransaction `json:"info,omitempty"`
}

type UserType string

const (
	UserTypeRegistered UserType = "REGISTERED"
	UserTypeGuest      UserType = "GUEST"
)

type TransactionUser struct {
	FullName   string   `json:"fullName,omitempty"`
	Type       UserType `json:"type,omitempty"`
	FiscalCode string   `json:"fiscalCode,omitempty"`
}

type Transaction struct {
	IDTransaction uint64 `json:"idTransaction,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	GrandTotal    int64  `json:"grandTotal,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Fee           int64  `json:"fee,omitempty"`
	Origin        string `json:"origin,omitempty"`
	CreationDate  string `json:"creationDate,omitempty"`
	RRN           string `json:"rrn,omitempty"`
	AuthCode      string `json:"authorizationCode,omitempty"`
	PSP           *PSP   `json:"psp,omitempty"`
}

type PSP struct {
	IDPsp        string `json:"idPsp,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
}

type InfoTransaction struct {
	ClientID string `json:"clientId,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Type     string `json:"type,omitempty"`
}
