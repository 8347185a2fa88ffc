package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/savegress/investdash/internal/analytics"
	"github.com/savegress/investdash/internal/config"
	"github.com/savegress/investdash/internal/fetcher"
	"github.com/savegress/investdash/internal/normalizer"
	"github.com/savegress/investdash/pkg/models"
)

// Subscriber is notified after a state change with the trigger that caused it
type Subscriber func(trigger Trigger, snap Snapshot)

// Controller owns the analytics state of one dashboard session
type Controller struct {
	fetcher         fetcher.Fetcher
	normalizer      *normalizer.Normalizer
	now             func() time.Time
	loc             *time.Location
	log             zerolog.Logger
	trailingMonths  int
	weeklyWindow    int
	defaultTimeline analytics.Timeline
	legend          *Legend

	mu    sync.RWMutex
	state state
	user  *models.UserProfile

	subMu       sync.RWMutex
	subscribers map[int]Subscriber
	nextSub     int
}

// Option configures a Controller
type Option func(*Controller)

// WithClock sets the clock used for "this month" figures and missing dates
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLocation sets the calendar location for month and week boundaries
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.loc = loc }
}

// WithLogger sets the controller logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// NewController creates a session controller in the idle state
func NewController(f fetcher.Fetcher, cfg *config.AnalyticsConfig, opts ...Option) *Controller {
	c := &Controller{
		fetcher:         f,
		now:             time.Now,
		loc:             time.Local,
		log:             zerolog.Nop(),
		trailingMonths:  analytics.DefaultTrailingMonths,
		weeklyWindow:    analytics.DefaultWeeklyWindow,
		defaultTimeline: analytics.TimelineMonth,
		legend:          NewLegend(),
		subscribers:     make(map[int]Subscriber),
	}
	if cfg != nil {
		if cfg.TrailingMonths > 0 {
			c.trailingMonths = cfg.TrailingMonths
		}
		if cfg.WeeklyWindow > 0 {
			c.weeklyWindow = cfg.WeeklyWindow
		}
		if tl, err := analytics.ParseTimeline(cfg.DefaultTimeline); err == nil {
			c.defaultTimeline = tl
		}
	}
	for _, opt := range opts {
		opt(c)
	}

	c.normalizer = normalizer.New(
		normalizer.WithClock(c.clock),
		normalizer.WithLocation(c.loc),
		normalizer.WithLogger(c.log),
	)
	c.state = initialState(c.defaultTimeline)
	return c
}

func (c *Controller) clock() time.Time {
	return c.now().In(c.loc)
}

// Subscribe registers fn for state change notifications. The returned func
// removes it.
func (c *Controller) Subscribe(fn Subscriber) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) dispatch(a action) Snapshot {
	c.mu.Lock()
	next, trigger := reduce(c.state, a)
	c.state = next
	snap := next.snapshot()
	c.mu.Unlock()

	if trigger == TriggerReset {
		c.legend.Reset()
	}
	if trigger != "" {
		c.notify(trigger, snap)
	}
	return snap
}

func (c *Controller) notify(trigger Trigger, snap Snapshot) {
	c.subMu.RLock()
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(trigger, snap)
	}
}

// SetUser makes user the session's active user. A different identity resets
// the state and loads the new user's records; nil logs the session out.
func (c *Controller) SetUser(ctx context.Context, user *models.UserProfile) Snapshot {
	if user == nil {
		return c.Reset()
	}

	c.mu.Lock()
	current := c.user
	status := c.state.status
	profile := *user
	c.user = &profile
	c.mu.Unlock()

	if current != nil && current.ID == user.ID && status != StatusIdle && status != StatusFailed {
		if sameProfile(*current, profile) {
			return c.Snapshot()
		}
		return c.dispatch(action{kind: actionSetProfile, profile: profile})
	}
	if current != nil && current.ID != user.ID {
		c.dispatch(action{kind: actionReset, timeline: c.defaultTimeline})
	}
	return c.load(ctx, profile)
}

func sameProfile(a, b models.UserProfile) bool {
	return a.ID == b.ID &&
		a.Token == b.Token &&
		a.ROI.Equal(b.ROI) &&
		a.AccountBalance.Equal(b.AccountBalance)
}

// Refresh reloads the active user's records
func (c *Controller) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	user := c.user
	c.mu.RUnlock()

	if user == nil {
		return Snapshot{}, ErrNoUser
	}
	return c.load(ctx, *user), nil
}

// Reset drops the active user and returns the session to its empty state
// without fetching. In-flight cycles are discarded when they complete.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
	return c.dispatch(action{kind: actionReset, timeline: c.defaultTimeline})
}

// load runs one fetch cycle and commits its result unless a newer cycle or a
// reset superseded it meanwhile.
func (c *Controller) load(ctx context.Context, user models.UserProfile) Snapshot {
	cycle := uuid.NewString()
	c.dispatch(action{kind: actionFetchStarted, cycle: cycle, profile: user})

	log := c.log.With().Str("user_id", user.ID).Str("cycle", cycle).Logger()
	log.Debug().Msg("loading dashboard records")

	var (
		wg           sync.WaitGroup
		transactions []models.RawTransaction
		withdrawals  []models.RawWithdrawal
		txErr, wErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		transactions, txErr = c.fetcher.FetchTransactions(ctx, user)
	}()
	go func() {
		defer wg.Done()
		withdrawals, wErr = c.fetcher.FetchWithdrawals(ctx, user)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil && (errors.Is(txErr, err) || errors.Is(wErr, err)) {
		log.Warn().Err(err).Msg("dashboard load abandoned")
		return c.dispatch(action{
			kind:  actionFetchAbandoned,
			cycle: cycle,
			advisory: &Advisory{
				Kind:    AdvisoryFetchCanceled,
				Message: "loading was canceled before it completed",
			},
		})
	}

	var failed []string
	if txErr != nil {
		log.Error().Err(txErr).Str("stream", fetcher.StreamTransactions).Msg("fetch failed")
		failed = append(failed, fetcher.StreamTransactions)
		transactions = nil
	}
	if wErr != nil {
		log.Error().Err(wErr).Str("stream", fetcher.StreamWithdrawals).Msg("fetch failed")
		failed = append(failed, fetcher.StreamWithdrawals)
		withdrawals = nil
	}

	txBatch := c.normalizer.Transactions(transactions)
	wBatch := c.normalizer.Withdrawals(withdrawals)
	stats := txBatch.Stats.Add(wBatch.Stats)

	var advisory *Advisory
	if len(failed) > 0 {
		advisory = &Advisory{
			Kind:    AdvisoryFetchFailure,
			Streams: failed,
			Message: "could not load " + strings.Join(failed, " and "),
		}
	}

	snap := c.dispatch(action{
		kind:         actionFetchCompleted,
		cycle:        cycle,
		now:          c.clock(),
		transactions: txBatch.Records,
		withdrawals:  wBatch.Records,
		stats:        stats,
		advisory:     advisory,
	})

	log.Info().
		Int("transactions", len(txBatch.Records)).
		Int("withdrawals", len(wBatch.Records)).
		Int("defaulted_dates", stats.DefaultedDates).
		Int("coerced_fields", stats.CoercedFields).
		Strs("failed_streams", failed).
		Msg("dashboard records loaded")

	return snap
}

// SetDate selects the reference day of the charts. Only the calendar date of
// date is kept. A zero date selects today.
func (c *Controller) SetDate(date time.Time) Snapshot {
	if !date.IsZero() {
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, c.loc)
	}
	return c.dispatch(action{kind: actionSetDate, date: date})
}

// SetTimeline selects the distribution timeline
func (c *Controller) SetTimeline(tl analytics.Timeline) Snapshot {
	return c.dispatch(action{kind: actionSetTimeline, timeline: tl})
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.snapshot()
}

// User returns the active user, if any
func (c *Controller) User() (models.UserProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return models.UserProfile{}, false
	}
	return *c.user, true
}

// Reference returns the instant the charts are evaluated at: the end of the
// selected day, or now when no date is selected.
func (c *Controller) Reference() time.Time {
	c.mu.RLock()
	selected := c.state.selectedDate
	c.mu.RUnlock()

	if selected.IsZero() {
		return c.clock()
	}
	return selected.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Legend returns the session's distribution legend
func (c *Controller) Legend() *Legend {
	return c.legend
}

// TrailingMonths is the configured width of the spend trend
func (c *Controller) TrailingMonths() int {
	return c.trailingMonths
}

// WeeklyWindow is the configured width of the weekly revenue chart
func (c *Controller) WeeklyWindow() int {
	return c.weeklyWindow
}

// Views are the chart figures evaluated against the selected date and timeline
type Views struct {
	Reference     time.Time               `json:"reference"`
	Timeline      analytics.Timeline      `json:"timeline"`
	PercentChange float64                 `json:"percentChange"`
	Trend         []analytics.MonthAmount `json:"trend"`
	Weekly        analytics.WeeklyRevenue `json:"weekly"`
	Distribution  []LegendEntry           `json:"distribution"`
}

// Views evaluates the aggregations on the current records. Nothing is cached.
func (c *Controller) Views() Views {
	ref := c.Reference()
	snap := c.Snapshot()
	records := snap.Records()

	return Views{
		Reference:     ref,
		Timeline:      snap.Timeline,
		PercentChange: analytics.PercentChange(records, ref),
		Trend:         analytics.TrailingMonths(records, ref, c.trailingMonths),
		Weekly:        analytics.WeeklySeries(records, snap.ROI, ref, c.weeklyWindow),
		Distribution:  c.legend.Entries(analytics.Distribution(records, snap.Timeline, ref)),
	}
}

// Errors
var (
	ErrNoUser = &Error{Code: "NO_USER", Message: "no active user in session"}
)

// Error represents a dashboard error
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
