// Package normalizer converts the backend's transaction and withdrawal records
// into the engine's unified record shape.
package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savegress/investdash/pkg/models"
	"github.com/shopspring/decimal"
)

// Layouts accepted for createdAt, tried in order. Layouts without a zone are
// interpreted in the normalizer's location.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Stats counts the defaults applied while normalizing a batch
type Stats struct {
	Records          int `json:"records"`
	DefaultedDates   int `json:"defaulted_dates"`
	DefaultedAmounts int `json:"defaulted_amounts"`
	CoercedFields    int `json:"coerced_fields"`
}

// Add returns the field-wise sum of two stats
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Records:          s.Records + o.Records,
		DefaultedDates:   s.DefaultedDates + o.DefaultedDates,
		DefaultedAmounts: s.DefaultedAmounts + o.DefaultedAmounts,
		CoercedFields:    s.CoercedFields + o.CoercedFields,
	}
}

// Batch is the output of one normalization call
type Batch struct {
	Records []models.NormalizedRecord
	Stats   Stats
}

// Normalizer holds the clock and location used to coerce dates. It keeps no
// state between calls.
type Normalizer struct {
	now func() time.Time
	loc *time.Location
	log zerolog.Logger
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithClock overrides the instant substituted for missing dates
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithLocation sets the location for zone-less timestamps
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) { n.loc = loc }
}

// WithLogger attaches a logger for defaulted fields
func WithLogger(log zerolog.Logger) Option {
	return func(n *Normalizer) { n.log = log }
}

// New creates a normalizer
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now: time.Now,
		loc: time.Local,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts both raw streams with a default normalizer.
// Transactions come first, then withdrawals, each in input order.
func Normalize(transactions []models.RawTransaction, withdrawals []models.RawWithdrawal) []models.NormalizedRecord {
	return New().Normalize(transactions, withdrawals).Records
}

// Normalize converts both raw streams into one record list
func (n *Normalizer) Normalize(transactions []models.RawTransaction, withdrawals []models.RawWithdrawal) Batch {
	txs := n.Transactions(transactions)
	ws := n.Withdrawals(withdrawals)

	records := make([]models.NormalizedRecord, 0, len(txs.Records)+len(ws.Records))
	records = append(records, txs.Records...)
	records = append(records, ws.Records...)

	return Batch{Records: records, Stats: txs.Stats.Add(ws.Stats)}
}

// Transactions normalizes a batch of investment transactions
func (n *Normalizer) Transactions(raw []models.RawTransaction) Batch {
	out := Batch{Records: make([]models.NormalizedRecord, 0, len(raw))}

	for _, tx := range raw {
		occurredAt, defaulted := n.parseDate(tx.CreatedAt)
		if defaulted {
			out.Stats.DefaultedDates++
			n.log.Debug().Str("id", tx.ID).Str("created_at", tx.CreatedAt).Msg("transaction date defaulted to now")
		}
		if !tx.Amount.Valid {
			out.Stats.DefaultedAmounts++
		}
		if tx.CoercedFields > 0 {
			out.Stats.CoercedFields += tx.CoercedFields
			n.log.Debug().Str("id", tx.ID).Int("fields", tx.CoercedFields).Msg("transaction fields coerced")
		}

		out.Records = append(out.Records, models.NormalizedRecord{
			ID:               tx.ID,
			Amount:           amountOf(tx.Amount),
			OccurredAt:       occurredAt,
			SourceKind:       models.SourceKindTransaction,
			DisplayStatus:    transactionStatus(tx.Status),
			CounterpartyName: orDefault(tx.CompanyName, models.UnknownCounterparty),
			CurrencyCode:     transactionCurrency(tx),
		})
	}

	out.Stats.Records = len(out.Records)
	return out
}

// Withdrawals normalizes a batch of withdrawal requests
func (n *Normalizer) Withdrawals(raw []models.RawWithdrawal) Batch {
	out := Batch{Records: make([]models.NormalizedRecord, 0, len(raw))}

	for _, w := range raw {
		occurredAt, defaulted := n.parseDate(w.CreatedAt)
		if defaulted {
			out.Stats.DefaultedDates++
			n.log.Debug().Str("id", w.ID).Str("created_at", w.CreatedAt).Msg("withdrawal date defaulted to now")
		}
		if !w.Amount.Valid {
			out.Stats.DefaultedAmounts++
		}
		if w.CoercedFields > 0 {
			out.Stats.CoercedFields += w.CoercedFields
			n.log.Debug().Str("id", w.ID).Int("fields", w.CoercedFields).Msg("withdrawal fields coerced")
		}

		out.Records = append(out.Records, models.NormalizedRecord{
			ID:               w.ID,
			Amount:           amountOf(w.Amount),
			OccurredAt:       occurredAt,
			SourceKind:       models.SourceKindWithdrawal,
			DisplayStatus:    withdrawalStatus(w.Status),
			CounterpartyName: withdrawalCounterparty(w.PaymentAccountDetails),
			CurrencyCode:     withdrawalCurrency(w.PaymentAccountDetails),
		})
	}

	out.Stats.Records = len(out.Records)
	return out
}

// parseDate returns the parsed instant, or now and true when the value is
// absent or unparsable. Unix epochs in seconds or milliseconds are accepted.
func (n *Normalizer) parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return n.now(), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, n.loc); err == nil {
			return t, false
		}
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil && epoch > 0 {
		if epoch >= epochMillisThreshold {
			return time.UnixMilli(epoch).In(n.loc), false
		}
		return time.Unix(epoch, 0).In(n.loc), false
	}
	return n.now(), true
}

// Epochs at or above this are read as milliseconds (seconds here would be
// past the year 5000).
const epochMillisThreshold = 100_000_000_000

func amountOf(a models.Amount) decimal.Decimal {
	if !a.Valid || a.Value.IsNegative() {
		return decimal.Zero
	}
	return a.Value
}

func transactionStatus(s models.TransactionStatus) models.DisplayStatus {
	status := foldStatus(string(s))
	if status == string(models.TransactionStatusCompleted) {
		return models.DisplayStatusSuccessful
	}
	return models.DisplayStatus(status)
}

func withdrawalStatus(s models.WithdrawalStatus) models.DisplayStatus {
	return models.DisplayStatus(foldStatus(string(s)))
}

func foldStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return string(models.DisplayStatusPending)
	case "cancelled":
		return string(models.DisplayStatusCanceled)
	}
	return s
}

func transactionCurrency(tx models.RawTransaction) string {
	if tx.CurrencyType == models.CurrencyTypeCrypto && tx.CryptoCurrency != "" {
		return strings.ToLower(tx.CryptoCurrency)
	}
	return models.DefaultCurrencyCode
}

func withdrawalCounterparty(details *models.PaymentAccountDetails) string {
	if details == nil {
		return models.UnknownCounterparty
	}
	switch details.Type {
	case models.CurrencyTypeFiat:
		if name := strings.TrimSpace(details.AccountDetails.BankName); name != "" {
			return name
		}
	case models.CurrencyTypeCrypto:
		if currency := strings.TrimSpace(details.Currency); currency != "" {
			return strings.ToUpper(currency) + " Wallet"
		}
	}
	return models.UnknownCounterparty
}

func withdrawalCurrency(details *models.PaymentAccountDetails) string {
	if details == nil || strings.TrimSpace(details.Currency) == "" {
		return models.DefaultCurrencyCode
	}
	return strings.ToLower(strings.TrimSpace(details.Currency))
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
