package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the backend status of an investment transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// WithdrawalStatus is the backend status of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusApproved   WithdrawalStatus = "approved"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusSuccessful WithdrawalStatus = "successful"
)

// CurrencyType distinguishes fiat from crypto funds
type CurrencyType string

const (
	CurrencyTypeFiat   CurrencyType = "fiat"
	CurrencyTypeCrypto CurrencyType = "crypto"
)

// Amount is a lenient monetary value decoded from backend JSON.
// Numbers and numeric strings are accepted; anything else (missing, null,
// garbage, negative) decodes as zero with Valid unset. Decoding never fails.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// NewAmount wraps a decimal as a valid amount
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Value: d, Valid: true}
}

// AmountFromFloat is a convenience for fixtures
func AmountFromFloat(f float64) Amount {
	return NewAmount(decimal.NewFromFloat(f))
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}

	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		return nil
	}
	a.Value = d
	a.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

// RawTransaction is an investment transaction as returned by the backend
type RawTransaction struct {
	ID             string            `json:"id"`
	CompanyName    string            `json:"companyName"`
	Status         TransactionStatus `json:"status"`
	Amount         Amount            `json:"amount"`
	CurrencyType   CurrencyType      `json:"currencyType"`
	CryptoCurrency string            `json:"cryptoCurrency,omitempty"`
	CreatedAt      string            `json:"createdAt"`
	UpdatedAt      string            `json:"updatedAt"`

	// CoercedFields counts fields that were rewritten or dropped while decoding
	CoercedFields int `json:"-"`
}

// UnmarshalJSON decodes a transaction field by field, so one mistyped field
// never rejects the record.
func (t *RawTransaction) UnmarshalJSON(data []byte) error {
	type plain RawTransaction
	var p plain
	n, err := decodeLenient(data, &p)
	if err != nil {
		return err
	}
	*t = RawTransaction(p)
	t.CoercedFields = n
	return nil
}

// RawWithdrawal is a withdrawal request as returned by the backend
type RawWithdrawal struct {
	ID                    string                 `json:"id"`
	UserID                string                 `json:"userId"`
	Amount                Amount                 `json:"amount"`
	Status                WithdrawalStatus       `json:"status"`
	PaymentAccountDetails *PaymentAccountDetails `json:"paymentAccountDetails,omitempty"`
	CreatedAt             string                 `json:"createdAt"`

	CoercedFields int `json:"-"`
}

// UnmarshalJSON decodes a withdrawal field by field
func (w *RawWithdrawal) UnmarshalJSON(data []byte) error {
	type plain RawWithdrawal
	var p plain
	n, err := decodeLenient(data, &p)
	if err != nil {
		return err
	}
	*w = RawWithdrawal(p)
	w.CoercedFields = n
	return nil
}

// PaymentAccountDetails describes where a withdrawal is paid to
type PaymentAccountDetails struct {
	Type           CurrencyType   `json:"type"`
	Currency       string         `json:"currency"`
	AccountDetails AccountDetails `json:"accountDetails"`
}

// AccountDetails holds the destination account fields; which are set depends on Type
type AccountDetails struct {
	BankName string `json:"bankName,omitempty"`
	Address  string `json:"address,omitempty"`
	Network  string `json:"network,omitempty"`
}

// SourceKind identifies which raw stream a normalized record came from
type SourceKind string

const (
	SourceKindTransaction SourceKind = "transaction"
	SourceKindWithdrawal  SourceKind = "withdrawal"
)

// DisplayStatus is the unified status vocabulary shown to users.
// Withdrawals may additionally carry their in-flight backend states
// (processing, approved), which pass through normalization unchanged.
type DisplayStatus string

const (
	DisplayStatusPending    DisplayStatus = "pending"
	DisplayStatusSuccessful DisplayStatus = "successful"
	DisplayStatusFailed     DisplayStatus = "failed"
	DisplayStatusCanceled   DisplayStatus = "canceled"
	DisplayStatusProcessing DisplayStatus = "processing"
	DisplayStatusApproved   DisplayStatus = "approved"
)

const (
	UnknownCounterparty = "Unknown"
	DefaultCurrencyCode = "usd"
)

// NormalizedRecord is a transaction or withdrawal in the engine's unified shape
type NormalizedRecord struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceKind       SourceKind      `json:"source_kind"`
	DisplayStatus    DisplayStatus   `json:"display_status"`
	CounterpartyName string          `json:"counterparty_name"`
	CurrencyCode     string          `json:"currency_code"`
}

// IsSuccessful reports whether the record counts towards settled totals
func (r NormalizedRecord) IsSuccessful() bool {
	return r.DisplayStatus == DisplayStatusSuccessful
}

// IsInvestment reports whether the record is a successful transaction
func (r NormalizedRecord) IsInvestment() bool {
	return r.SourceKind == SourceKindTransaction && r.IsSuccessful()
}

// IsPayout reports whether the record is a successful withdrawal
func (r NormalizedRecord) IsPayout() bool {
	return r.SourceKind == SourceKindWithdrawal && r.IsSuccessful()
}

// UserProfile is the identity of the active dashboard user together with the
// account figures the backend reports on the user itself.
type UserProfile struct {
	ID             string          `json:"id"`
	Token          string          `json:"-"`
	AccountBalance decimal.Decimal `json:"account_balance"`
	ROI            decimal.Decimal `json:"roi"`
}
