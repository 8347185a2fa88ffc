package cli

import (
	"bytes"
	"fmt"
	"strconv"

	md "github.com/nao1215/markdown"
	"github.com/savegress/investdash/internal/analytics"
	"github.com/savegress/investdash/internal/dashboard"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func percent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64) + "%"
}

// SummaryMarkdown renders the summary cards of a session
func SummaryMarkdown(snap dashboard.Snapshot, views dashboard.Views) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Investment Summary for %s", views.Reference.Format("January 2006")))

	doc.Table(md.TableSet{
		Header: []string{"Figure", "Value"},
		Rows: [][]string{
			{"Spent this month", money(snap.SpentThisMonth)},
			{"Change vs last month", fmt.Sprintf("%+.2f%%", views.PercentChange)},
			{"Withdrawn this month", money(snap.TotalWithdrawnThisMonth)},
			{"ROI", money(snap.ROI)},
			{"Pending transactions", strconv.Itoa(len(snap.PendingTransactions))},
		},
	})

	if len(snap.InvestedCompanies) > 0 {
		doc.H2("Invested Companies")
		table := md.TableSet{Header: []string{"Company", "Invested", "Transactions"}}
		for _, h := range snap.InvestedCompanies {
			table.Rows = append(table.Rows, []string{h.Name, money(h.Amount), strconv.Itoa(h.Count)})
		}
		doc.Table(table)
	}

	if snap.Error != nil {
		doc.H2("Warnings")
		doc.PlainText(snap.Error.Message)
	}
	if snap.Stats.DefaultedDates > 0 || snap.Stats.DefaultedAmounts > 0 {
		doc.PlainText(fmt.Sprintf("%d records had no usable date and %d no usable amount.",
			snap.Stats.DefaultedDates, snap.Stats.DefaultedAmounts))
	}

	return doc.String()
}

// TrendMarkdown renders the trailing monthly spend
func TrendMarkdown(trend []analytics.MonthAmount) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Monthly Spend")
	table := md.TableSet{Header: []string{"Month", "Spent"}}
	for _, m := range trend {
		table.Rows = append(table.Rows, []string{fmt.Sprintf("%s %d", m.Label, m.Year), money(m.Amount)})
	}
	doc.Table(table)

	return doc.String()
}

// WeeklyMarkdown renders the weekly revenue series, one row per week
func WeeklyMarkdown(weekly analytics.WeeklyRevenue) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Weekly Revenue")
	header := []string{"Week of"}
	for _, s := range weekly.Series {
		header = append(header, s.Name)
	}
	table := md.TableSet{Header: header}
	for i, label := range weekly.Categories {
		row := []string{label}
		for _, s := range weekly.Series {
			row = append(row, strconv.FormatFloat(s.Data[i], 'f', 2, 64))
		}
		table.Rows = append(table.Rows, row)
	}
	doc.Table(table)

	return doc.String()
}

// DistributionMarkdown renders the portfolio share per company
func DistributionMarkdown(timeline analytics.Timeline, entries []dashboard.LegendEntry) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Portfolio Distribution (%s)", timeline))
	if len(entries) == 0 {
		doc.PlainText("No successful investments in this period.")
		return doc.String()
	}

	table := md.TableSet{Header: []string{"Company", "Share"}}
	for _, e := range entries {
		table.Rows = append(table.Rows, []string{e.Name, percent(e.Value)})
	}
	doc.Table(table)

	return doc.String()
}
