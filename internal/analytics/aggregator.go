// Package analytics holds the pure aggregations behind the dashboard charts and
// summary cards. Every function reads normalized records and returns fresh
// values; inputs are never modified and nothing is cached.
package analytics

import (
	"time"

	"github.com/savegress/investdash/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultTrailingMonths = 6
	DefaultWeeklyWindow   = 10
)

// Series names produced by WeeklySeries
const (
	SeriesInvestments = "Investments"
	SeriesWithdrawals = "Withdrawals"
	SeriesROI         = "ROI"
)

var hundred = decimal.NewFromInt(100)

// TimeBucket is one chronological slot of a chart series
type TimeBucket struct {
	Index  int                        `json:"index"`
	Label  string                     `json:"label"`
	Start  time.Time                  `json:"start"`
	Totals map[string]decimal.Decimal `json:"totals"`
}

// Buckets creates one empty bucket per start time, labelled with layout and
// holding a zero total for every named series.
func Buckets(starts []time.Time, layout string, series ...string) []TimeBucket {
	buckets := make([]TimeBucket, len(starts))
	for i, start := range starts {
		totals := make(map[string]decimal.Decimal, len(series))
		for _, name := range series {
			totals[name] = decimal.Zero
		}
		buckets[i] = TimeBucket{
			Index:  i,
			Label:  start.Format(layout),
			Start:  start,
			Totals: totals,
		}
	}
	return buckets
}

func (b *TimeBucket) add(series string, amount decimal.Decimal) {
	b.Totals[series] = b.Totals[series].Add(amount)
}

// SpendForMonth sums successful investment transactions that occurred in the
// given calendar month of loc.
func SpendForMonth(records []models.NormalizedRecord, year int, month time.Month, loc *time.Location) decimal.Decimal {
	start := monthStart(year, month, loc)
	end := start.AddDate(0, 1, 0)

	total := decimal.Zero
	for _, r := range records {
		if r.IsInvestment() && within(r.OccurredAt, start, end) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// WithdrawnForMonth sums successful withdrawals in the given calendar month
func WithdrawnForMonth(records []models.NormalizedRecord, year int, month time.Month, loc *time.Location) decimal.Decimal {
	start := monthStart(year, month, loc)
	end := start.AddDate(0, 1, 0)

	total := decimal.Zero
	for _, r := range records {
		if r.IsPayout() && within(r.OccurredAt, start, end) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// PercentChange compares spend in ref's month against the month before.
// With no spend last month the result is 100 when there is spend this month
// and 0 otherwise.
func PercentChange(records []models.NormalizedRecord, ref time.Time) float64 {
	loc := ref.Location()
	current := monthStart(ref.Year(), ref.Month(), loc)
	previous := current.AddDate(0, -1, 0)

	cur := SpendForMonth(records, current.Year(), current.Month(), loc)
	prev := SpendForMonth(records, previous.Year(), previous.Month(), loc)
	return changePercent(cur, prev)
}

func changePercent(cur, prev decimal.Decimal) float64 {
	if prev.IsZero() {
		if cur.IsPositive() {
			return 100
		}
		return 0
	}
	return cur.Sub(prev).Div(prev).Mul(hundred).InexactFloat64()
}

// MonthAmount is one point of the trailing spend series
type MonthAmount struct {
	Label  string          `json:"label"`
	Year   int             `json:"year"`
	Month  time.Month      `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// TrailingMonths returns spend for the n calendar months ending with ref's
// month, oldest first. n <= 0 uses DefaultTrailingMonths.
func TrailingMonths(records []models.NormalizedRecord, ref time.Time, n int) []MonthAmount {
	if n <= 0 {
		n = DefaultTrailingMonths
	}
	buckets := MonthlyBuckets(records, ref, n)

	out := make([]MonthAmount, len(buckets))
	for i, b := range buckets {
		out[i] = MonthAmount{
			Label:  b.Label,
			Year:   b.Start.Year(),
			Month:  b.Start.Month(),
			Amount: b.Totals[SeriesInvestments],
		}
	}
	return out
}

// MonthlyBuckets buckets successful investments into the n calendar months
// ending with ref's month.
func MonthlyBuckets(records []models.NormalizedRecord, ref time.Time, n int) []TimeBucket {
	if n <= 0 {
		n = DefaultTrailingMonths
	}
	loc := ref.Location()
	last := monthStart(ref.Year(), ref.Month(), loc)

	starts := make([]time.Time, n)
	for i := range starts {
		starts[i] = last.AddDate(0, i-(n-1), 0)
	}
	buckets := Buckets(starts, "Jan", SeriesInvestments)

	first := starts[0]
	end := last.AddDate(0, 1, 0)
	for _, r := range records {
		if !r.IsInvestment() || !within(r.OccurredAt, first, end) {
			continue
		}
		at := r.OccurredAt.In(loc)
		idx := (at.Year()-first.Year())*12 + int(at.Month()-first.Month())
		buckets[idx].add(SeriesInvestments, r.Amount)
	}
	return buckets
}

// ROIShare is the part of the aggregate ROI attributed to one transaction
type ROIShare struct {
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Amount     decimal.Decimal `json:"amount"`
}

// AttributeROI spreads roiTotal across successful investments in proportion to
// their amount. Without investment volume there is no ROI signal and the
// result is empty.
func AttributeROI(records []models.NormalizedRecord, roiTotal decimal.Decimal) []ROIShare {
	volume := TotalInvested(records)
	if volume.IsZero() {
		return nil
	}

	var shares []ROIShare
	for _, r := range records {
		if !r.IsInvestment() {
			continue
		}
		shares = append(shares, ROIShare{
			ID:         r.ID,
			OccurredAt: r.OccurredAt,
			Amount:     r.Amount.Mul(roiTotal).Div(volume),
		})
	}
	return shares
}

// WeeklyBuckets buckets successful investments, successful withdrawals and
// attributed ROI into the windowWeeks ISO weeks ending with ref's week. The
// most recent week is last.
func WeeklyBuckets(records []models.NormalizedRecord, roiTotal decimal.Decimal, ref time.Time, windowWeeks int) []TimeBucket {
	if windowWeeks <= 0 {
		windowWeeks = DefaultWeeklyWindow
	}

	refMonday := weekMonday(civilDate(ref))
	starts := make([]time.Time, windowWeeks)
	for i := range starts {
		starts[i] = refMonday.AddDate(0, 0, -7*(windowWeeks-1-i))
	}
	buckets := Buckets(starts, "Jan 02", SeriesInvestments, SeriesWithdrawals, SeriesROI)

	slot := func(t time.Time) (int, bool) {
		weeksAgo := WeeksBetween(t, ref)
		if weeksAgo < 0 || weeksAgo >= windowWeeks {
			return 0, false
		}
		return windowWeeks - 1 - weeksAgo, true
	}

	for _, r := range records {
		if !r.IsSuccessful() {
			continue
		}
		idx, ok := slot(r.OccurredAt)
		if !ok {
			continue
		}
		switch r.SourceKind {
		case models.SourceKindTransaction:
			buckets[idx].add(SeriesInvestments, r.Amount)
		case models.SourceKindWithdrawal:
			buckets[idx].add(SeriesWithdrawals, r.Amount)
		}
	}

	for _, share := range AttributeROI(records, roiTotal) {
		if idx, ok := slot(share.OccurredAt); ok {
			buckets[idx].add(SeriesROI, share.Amount)
		}
	}

	return buckets
}

// Series is one named line of a chart
type Series struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// WeeklyRevenue is the chart-ready weekly revenue series
type WeeklyRevenue struct {
	Categories []string `json:"categories"`
	Series     []Series `json:"series"`
}

// WeeklySeries returns the weekly revenue chart: investments, withdrawals and
// proportional ROI per ISO week, windowWeeks wide and ending with ref's week.
func WeeklySeries(records []models.NormalizedRecord, roiTotal decimal.Decimal, ref time.Time, windowWeeks int) WeeklyRevenue {
	buckets := WeeklyBuckets(records, roiTotal, ref, windowWeeks)

	names := []string{SeriesInvestments, SeriesWithdrawals, SeriesROI}
	out := WeeklyRevenue{
		Categories: make([]string, len(buckets)),
		Series:     make([]Series, len(names)),
	}
	for s, name := range names {
		out.Series[s] = Series{Name: name, Data: make([]float64, len(buckets))}
	}

	for i, b := range buckets {
		out.Categories[i] = b.Label
		for s, name := range names {
			out.Series[s].Data[i] = b.Totals[name].InexactFloat64()
		}
	}
	return out
}
