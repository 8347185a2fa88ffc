package analytics

import (
	"sort"
	"time"

	"github.com/savegress/investdash/pkg/models"
	"github.com/shopspring/decimal"
)

// Share is one counterparty's part of the invested total
type Share struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Percent float64         `json:"value"`
}

// Distribution splits successful investments made since the start of the
// current timeline period (up to ref) by counterparty. Percentages are
// rounded to two decimals and are all zero when nothing was invested.
// Counterparties appear in order of their first record.
func Distribution(records []models.NormalizedRecord, timeline Timeline, ref time.Time) []Share {
	start := timeline.Start(ref)

	var order []string
	byName := make(map[string]decimal.Decimal)
	total := decimal.Zero

	for _, r := range records {
		if !r.IsInvestment() || r.OccurredAt.Before(start) || r.OccurredAt.After(ref) {
			continue
		}
		if _, seen := byName[r.CounterpartyName]; !seen {
			order = append(order, r.CounterpartyName)
			byName[r.CounterpartyName] = decimal.Zero
		}
		byName[r.CounterpartyName] = byName[r.CounterpartyName].Add(r.Amount)
		total = total.Add(r.Amount)
	}

	shares := make([]Share, 0, len(order))
	for _, name := range order {
		amount := byName[name]
		share := Share{Name: name, Amount: amount}
		if !total.IsZero() {
			share.Percent = amount.Mul(hundred).Div(total).Round(2).InexactFloat64()
		}
		shares = append(shares, share)
	}
	return shares
}

// Holding is the settled amount invested with one company
type Holding struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// InvestedCompanies groups successful investments by company, largest first
func InvestedCompanies(records []models.NormalizedRecord) []Holding {
	index := make(map[string]int)
	var holdings []Holding

	for _, r := range records {
		if !r.IsInvestment() {
			continue
		}
		i, ok := index[r.CounterpartyName]
		if !ok {
			i = len(holdings)
			index[r.CounterpartyName] = i
			holdings = append(holdings, Holding{Name: r.CounterpartyName, Amount: decimal.Zero})
		}
		holdings[i].Amount = holdings[i].Amount.Add(r.Amount)
		holdings[i].Count++
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		if c := holdings[i].Amount.Cmp(holdings[j].Amount); c != 0 {
			return c > 0
		}
		return holdings[i].Name < holdings[j].Name
	})
	return holdings
}

// PendingTransactions returns investment transactions still awaiting settlement
func PendingTransactions(records []models.NormalizedRecord) []models.NormalizedRecord {
	pending := make([]models.NormalizedRecord, 0)
	for _, r := range records {
		if r.SourceKind == models.SourceKindTransaction && r.DisplayStatus == models.DisplayStatusPending {
			pending = append(pending, r)
		}
	}
	return pending
}

// TotalInvested sums every successful investment regardless of date
func TotalInvested(records []models.NormalizedRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.IsInvestment() {
			total = total.Add(r.Amount)
		}
	}
	return total
}
