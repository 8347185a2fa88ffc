// Package dashboard holds the per-session analytics state of the investment
// dashboard and the controller that loads, normalizes and aggregates it.
package dashboard

import (
	"time"

	"github.com/savegress/investdash/internal/analytics"
	"github.com/savegress/investdash/internal/normalizer"
	"github.com/savegress/investdash/pkg/models"
	"github.com/shopspring/decimal"
)

// Status is the load status of a session
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Trigger names the state change that subscribers are notified about
type Trigger string

const (
	TriggerRecords  Trigger = "records"
	TriggerDate     Trigger = "date"
	TriggerTimeline Trigger = "timeline"
	TriggerReset    Trigger = "reset"
)

// Advisory kinds
const (
	AdvisoryFetchFailure  = "fetch_failure"
	AdvisoryFetchCanceled = "fetch_canceled"
)

// Advisory is a non-fatal problem reported alongside otherwise usable data
type Advisory struct {
	Kind    string   `json:"kind"`
	Streams []string `json:"streams,omitempty"`
	Message string   `json:"message"`
}

// Snapshot is a read-only copy of a session's state with its derived summary
// figures.
type Snapshot struct {
	Transactions            []models.NormalizedRecord `json:"transactions"`
	Withdrawals             []models.NormalizedRecord `json:"withdrawals"`
	SpentThisMonth          decimal.Decimal           `json:"spentThisMonth"`
	ROI                     decimal.Decimal           `json:"roi"`
	AccountBalance          decimal.Decimal           `json:"accountBalance"`
	InvestedCompanies       []analytics.Holding       `json:"investedCompanies"`
	PendingTransactions     []models.NormalizedRecord `json:"pendingTransactions"`
	TotalWithdrawnThisMonth decimal.Decimal           `json:"totalWithdrawnThisMonth"`
	Loading                 bool                      `json:"loading"`
	Status                  Status                    `json:"status"`
	Error                   *Advisory                 `json:"error"`
	SelectedDate            time.Time                 `json:"selectedDate"`
	Timeline                analytics.Timeline        `json:"timeline"`
	Stats                   normalizer.Stats          `json:"stats"`
	UpdatedAt               time.Time                 `json:"updatedAt"`
}

// Records returns transactions followed by withdrawals
func (s Snapshot) Records() []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0, len(s.Transactions)+len(s.Withdrawals))
	out = append(out, s.Transactions...)
	return append(out, s.Withdrawals...)
}

type state struct {
	cycle        string
	status       Status
	advisory     *Advisory
	transactions []models.NormalizedRecord
	withdrawals  []models.NormalizedRecord
	stats        normalizer.Stats
	profile      models.UserProfile
	selectedDate time.Time
	timeline     analytics.Timeline
	updatedAt    time.Time

	spentThisMonth     decimal.Decimal
	withdrawnThisMonth decimal.Decimal
	investedCompanies  []analytics.Holding
	pending            []models.NormalizedRecord
}

func initialState(timeline analytics.Timeline) state {
	return state{
		status:            StatusIdle,
		timeline:          timeline,
		transactions:      []models.NormalizedRecord{},
		withdrawals:       []models.NormalizedRecord{},
		investedCompanies: []analytics.Holding{},
		pending:           []models.NormalizedRecord{},
	}
}

func (s state) records() []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0, len(s.transactions)+len(s.withdrawals))
	out = append(out, s.transactions...)
	return append(out, s.withdrawals...)
}

// derive recomputes the summary figures for the month of now
func (s *state) derive(now time.Time) {
	records := s.records()
	loc := now.Location()
	s.spentThisMonth = analytics.SpendForMonth(records, now.Year(), now.Month(), loc)
	s.withdrawnThisMonth = analytics.WithdrawnForMonth(records, now.Year(), now.Month(), loc)
	s.investedCompanies = analytics.InvestedCompanies(records)
	s.pending = analytics.PendingTransactions(records)
	s.updatedAt = now
}

func (s state) snapshot() Snapshot {
	return Snapshot{
		Transactions:            append([]models.NormalizedRecord{}, s.transactions...),
		Withdrawals:             append([]models.NormalizedRecord{}, s.withdrawals...),
		SpentThisMonth:          s.spentThisMonth,
		ROI:                     s.profile.ROI,
		AccountBalance:          s.profile.AccountBalance,
		InvestedCompanies:       append([]analytics.Holding{}, s.investedCompanies...),
		PendingTransactions:     append([]models.NormalizedRecord{}, s.pending...),
		TotalWithdrawnThisMonth: s.withdrawnThisMonth,
		Loading:                 s.status == StatusLoading,
		Status:                  s.status,
		Error:                   s.advisory,
		SelectedDate:            s.selectedDate,
		Timeline:                s.timeline,
		Stats:                   s.stats,
		UpdatedAt:               s.updatedAt,
	}
}

type actionKind int

const (
	actionFetchStarted actionKind = iota
	actionFetchCompleted
	actionFetchAbandoned
	actionReset
	actionSetDate
	actionSetTimeline
	actionSetProfile
)

type action struct {
	kind         actionKind
	cycle        string
	now          time.Time
	profile      models.UserProfile
	transactions []models.NormalizedRecord
	withdrawals  []models.NormalizedRecord
	stats        normalizer.Stats
	advisory     *Advisory
	date         time.Time
	timeline     analytics.Timeline
}

// reduce applies a to s. The returned trigger is empty when subscribers need
// not be told, including when a completion belongs to a superseded cycle.
func reduce(s state, a action) (state, Trigger) {
	switch a.kind {
	case actionFetchStarted:
		s.cycle = a.cycle
		s.status = StatusLoading
		s.advisory = nil
		s.profile = a.profile
		return s, ""

	case actionFetchCompleted:
		if a.cycle != s.cycle || s.status != StatusLoading {
			return s, ""
		}
		s.transactions = a.transactions
		s.withdrawals = a.withdrawals
		s.stats = a.stats
		s.advisory = a.advisory
		s.status = StatusSucceeded
		s.derive(a.now)
		return s, TriggerRecords

	case actionFetchAbandoned:
		if a.cycle != s.cycle || s.status != StatusLoading {
			return s, ""
		}
		s.status = StatusFailed
		s.advisory = a.advisory
		return s, TriggerRecords

	case actionReset:
		return initialState(a.timeline), TriggerReset

	case actionSetDate:
		s.selectedDate = a.date
		return s, TriggerDate

	case actionSetTimeline:
		s.timeline = a.timeline
		return s, TriggerTimeline

	case actionSetProfile:
		s.profile = a.profile
		return s, TriggerRecords
	}
	return s, ""
}
