package normalizer

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/savegress/investdash/pkg/models"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return New(WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
}

func TestTransactions_StatusMapping(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		status   models.TransactionStatus
		expected models.DisplayStatus
	}{
		{models.TransactionStatusCompleted, models.DisplayStatusSuccessful},
		{models.TransactionStatusPending, models.DisplayStatusPending},
		{models.TransactionStatusFailed, models.DisplayStatusFailed},
		{"Completed", models.DisplayStatusSuccessful},
		{"cancelled", models.DisplayStatusCanceled},
		{"", models.DisplayStatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			batch := n.Transactions([]models.RawTransaction{{ID: "t1", Status: tt.status}})
			if got := batch.Records[0].DisplayStatus; got != tt.expected {
				t.Errorf("status %q mapped to %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestWithdrawals_StatusPassThrough(t *testing.T) {
	n := newTestNormalizer()

	statuses := []models.WithdrawalStatus{
		models.WithdrawalStatusPending,
		models.WithdrawalStatusProcessing,
		models.WithdrawalStatusApproved,
		models.WithdrawalStatusFailed,
		models.WithdrawalStatusSuccessful,
	}

	for _, s := range statuses {
		batch := n.Withdrawals([]models.RawWithdrawal{{ID: "w1", Status: s}})
		if got := batch.Records[0].DisplayStatus; string(got) != string(s) {
			t.Errorf("withdrawal status %q became %q", s, got)
		}
	}

	// a backend "completed" withdrawal is not relabeled
	batch := n.Withdrawals([]models.RawWithdrawal{{ID: "w2", Status: "completed"}})
	if got := batch.Records[0].DisplayStatus; got != "completed" {
		t.Errorf("withdrawal completed should pass through, got %q", got)
	}
}

func TestWithdrawals_Counterparty(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name     string
		details  *models.PaymentAccountDetails
		expected string
		currency string
	}{
		{
			name: "fiat with bank",
			details: &models.PaymentAccountDetails{
				Type:           models.CurrencyTypeFiat,
				Currency:       "USD",
				AccountDetails: models.AccountDetails{BankName: "Chase"},
			},
			expected: "Chase",
			currency: "usd",
		},
		{
			name: "fiat without bank",
			details: &models.PaymentAccountDetails{
				Type:     models.CurrencyTypeFiat,
				Currency: "eur",
			},
			expected: models.UnknownCounterparty,
			currency: "eur",
		},
		{
			name: "crypto wallet",
			details: &models.PaymentAccountDetails{
				Type:           models.CurrencyTypeCrypto,
				Currency:       "btc",
				AccountDetails: models.AccountDetails{Address: "bc1q", Network: "bitcoin"},
			},
			expected: "BTC Wallet",
			currency: "btc",
		},
		{
			name:     "no details",
			details:  nil,
			expected: models.UnknownCounterparty,
			currency: models.DefaultCurrencyCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := n.Withdrawals([]models.RawWithdrawal{{ID: "w", PaymentAccountDetails: tt.details}})
			rec := batch.Records[0]
			if rec.CounterpartyName != tt.expected {
				t.Errorf("counterparty = %q, want %q", rec.CounterpartyName, tt.expected)
			}
			if rec.CurrencyCode != tt.currency {
				t.Errorf("currency = %q, want %q", rec.CurrencyCode, tt.currency)
			}
			if rec.SourceKind != models.SourceKindWithdrawal {
				t.Errorf("source kind = %q", rec.SourceKind)
			}
		})
	}
}

func TestTransactions_Defaults(t *testing.T) {
	n := newTestNormalizer()

	batch := n.Transactions([]models.RawTransaction{
		{ID: "t1", CreatedAt: "not a date", CurrencyType: models.CurrencyTypeFiat},
		{ID: "t2", CompanyName: "Acme", CreatedAt: "2025-01-10T08:30:00Z", Amount: models.AmountFromFloat(42.5),
			CurrencyType: models.CurrencyTypeCrypto, CryptoCurrency: "ETH"},
		{ID: "t3", CreatedAt: "2025-02-01"},
	})

	if len(batch.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(batch.Records))
	}

	first := batch.Records[0]
	if !first.OccurredAt.Equal(fixedNow) {
		t.Errorf("unparsable date should default to now, got %v", first.OccurredAt)
	}
	if !first.Amount.IsZero() {
		t.Errorf("missing amount should be zero, got %s", first.Amount)
	}
	if first.CounterpartyName != models.UnknownCounterparty {
		t.Errorf("missing company should be Unknown, got %q", first.CounterpartyName)
	}
	if first.CurrencyCode != models.DefaultCurrencyCode {
		t.Errorf("fiat currency should default to usd, got %q", first.CurrencyCode)
	}

	second := batch.Records[1]
	if !second.Amount.Equal(decimal.NewFromFloat(42.5)) {
		t.Errorf("amount = %s, want 42.5", second.Amount)
	}
	if second.CurrencyCode != "eth" {
		t.Errorf("crypto currency = %q, want eth", second.CurrencyCode)
	}
	if want := time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC); !second.OccurredAt.Equal(want) {
		t.Errorf("occurredAt = %v, want %v", second.OccurredAt, want)
	}

	third := batch.Records[2]
	if want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC); !third.OccurredAt.Equal(want) {
		t.Errorf("date-only occurredAt = %v, want %v", third.OccurredAt, want)
	}

	if batch.Stats.DefaultedDates != 1 {
		t.Errorf("expected 1 defaulted date, got %d", batch.Stats.DefaultedDates)
	}
	if batch.Stats.DefaultedAmounts != 2 {
		t.Errorf("expected 2 defaulted amounts, got %d", batch.Stats.DefaultedAmounts)
	}
}

func TestNormalize_MalformedJSONBatch(t *testing.T) {
	payload := `[
		{"id":"t1","companyName":"Acme","status":"completed","amount":100,"currencyType":"fiat","createdAt":"2025-03-01T10:00:00Z"},
		{"id":"t2","companyName":"Beta","status":"pending","amount":"abc","currencyType":"fiat","createdAt":"2025-03-02T10:00:00Z"},
		{"id":"t3","companyName":"Gamma","status":"completed","currencyType":"fiat"},
		{"id":"t4","companyName":"Delta","status":"completed","amount":-5,"currencyType":"fiat","createdAt":"2025-03-03T10:00:00Z"},
		{"id":"t5","companyName":"Eps","status":"completed","amount":"12.75","currencyType":"fiat","createdAt":"2025-03-03T10:00:00Z"}
	]`

	var raw []models.RawTransaction
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("lenient decode should not fail: %v", err)
	}

	batch := newTestNormalizer().Transactions(raw)
	want := []string{"100", "0", "0", "0", "12.75"}
	for i, rec := range batch.Records {
		if rec.Amount.String() != want[i] {
			t.Errorf("record %s amount = %s, want %s", rec.ID, rec.Amount, want[i])
		}
		if rec.Amount.IsNegative() {
			t.Errorf("record %s has negative amount", rec.ID)
		}
	}
}

func TestNormalize_OrderAndTraceability(t *testing.T) {
	n := newTestNormalizer()

	txs := []models.RawTransaction{{ID: "t2"}, {ID: "t1"}}
	ws := []models.RawWithdrawal{{ID: "w9"}, {ID: "w3"}}

	batch := n.Normalize(txs, ws)
	ids := make([]string, len(batch.Records))
	for i, r := range batch.Records {
		ids[i] = r.ID
	}

	expected := []string{"t2", "t1", "w9", "w3"}
	if !reflect.DeepEqual(ids, expected) {
		t.Errorf("order = %v, want %v", ids, expected)
	}
	if batch.Stats.Records != 4 {
		t.Errorf("expected 4 records in stats, got %d", batch.Stats.Records)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer()

	txs := []models.RawTransaction{
		{ID: "t1", CompanyName: "Acme", Status: "completed", Amount: models.AmountFromFloat(10), CreatedAt: "2025-03-01T00:00:00Z"},
		{ID: "t2", Status: "pending", CreatedAt: ""},
	}
	ws := []models.RawWithdrawal{
		{ID: "w1", Status: "successful", Amount: models.AmountFromFloat(3), CreatedAt: "2025-03-02T00:00:00Z"},
	}

	first := n.Normalize(txs, ws)
	second := n.Normalize(txs, ws)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestNormalize_Empty(t *testing.T) {
	records := Normalize(nil, nil)
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", records)
	}
}

func TestParseDate_Epochs(t *testing.T) {
	n := newTestNormalizer()
	want := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		value     string
		want      time.Time
		defaulted bool
	}{
		{"milliseconds", "1740823200000", want, false},
		{"seconds", "1740823200", want, false},
		{"zero", "0", fixedNow, true},
		{"negative", "-5", fixedNow, true},
		{"text", "yesterday", fixedNow, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, defaulted := n.parseDate(tt.value)
			if !got.Equal(tt.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tt.value, got, tt.want)
			}
			if defaulted != tt.defaulted {
				t.Errorf("parseDate(%q) defaulted = %v, want %v", tt.value, defaulted, tt.defaulted)
			}
		})
	}
}

func TestNormalize_MistypedFieldsCounted(t *testing.T) {
	txPayload := `[
		{"id":"t1","companyName":"Acme","status":"completed","amount":100,"createdAt":"2025-03-01T10:00:00Z"},
		{"id":7,"companyName":"Beta","status":"completed","amount":40,"createdAt":1740823200000}
	]`
	wPayload := `[
		{"id":"w1","amount":10,"status":"successful","createdAt":"2025-03-02T10:00:00Z",
		 "paymentAccountDetails":{"type":"crypto","currency":5,"accountDetails":{"address":"0xabc"}}}
	]`

	var txs []models.RawTransaction
	if err := json.Unmarshal([]byte(txPayload), &txs); err != nil {
		t.Fatalf("transactions should decode: %v", err)
	}
	var ws []models.RawWithdrawal
	if err := json.Unmarshal([]byte(wPayload), &ws); err != nil {
		t.Fatalf("withdrawals should decode: %v", err)
	}

	batch := newTestNormalizer().Normalize(txs, ws)
	if len(batch.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(batch.Records))
	}
	if batch.Stats.CoercedFields != 3 {
		t.Errorf("coerced fields = %d, want 3", batch.Stats.CoercedFields)
	}
	if batch.Stats.DefaultedDates != 0 {
		t.Errorf("defaulted dates = %d, want 0", batch.Stats.DefaultedDates)
	}
	if got := batch.Records[1]; got.ID != "7" || !got.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("unexpected record %+v", got)
	}
	if got := batch.Records[2].CounterpartyName; got != "5 Wallet" {
		t.Errorf("counterparty = %q, want \"5 Wallet\"", got)
	}
}
