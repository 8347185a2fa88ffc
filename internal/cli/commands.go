// Package cli implements the investdashctl subcommands, which run the
// analytics engine over JSON dumps of the backend responses.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/savegress/investdash/internal/analytics"
	"github.com/savegress/investdash/internal/config"
	"github.com/savegress/investdash/internal/dashboard"
	"github.com/savegress/investdash/internal/fetcher"
	"github.com/savegress/investdash/pkg/models"
	"github.com/shopspring/decimal"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&summaryCmd{}, "reports")
	c.Register(&trendCmd{}, "reports")
	c.Register(&weeklyCmd{}, "reports")
	c.Register(&distributionCmd{}, "reports")
}

// source holds the flags shared by every report
type source struct {
	transactions string
	withdrawals  string
	date         string
	roi          string
	timeline     string
	window       int
	months       int
	plain        bool
	verbose      bool

	out io.Writer
}

func (s *source) setFlags(f *flag.FlagSet) {
	f.StringVar(&s.transactions, "transactions", "", "JSON file with the transactions response")
	f.StringVar(&s.withdrawals, "withdrawals", "", "JSON file with the withdrawals response")
	f.StringVar(&s.date, "d", "", "Reference date YYYY-MM-DD (defaults to today)")
	f.StringVar(&s.roi, "roi", "0", "Aggregate ROI to attribute across investments")
	f.StringVar(&s.timeline, "timeline", string(analytics.TimelineMonth), "Distribution timeline (week, month, year)")
	f.IntVar(&s.window, "window", analytics.DefaultWeeklyWindow, "Weeks in the weekly revenue report")
	f.IntVar(&s.months, "months", analytics.DefaultTrailingMonths, "Months in the spend trend report")
	f.BoolVar(&s.plain, "plain", false, "Print raw markdown instead of rendering it")
	f.BoolVar(&s.verbose, "v", false, "Log normalization details to stderr")
}

// reference returns the end of the requested day, or now
func (s *source) reference() (time.Time, error) {
	if s.date == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation("2006-01-02", s.date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s.date, err)
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// load runs one dashboard session over the dump files
func (s *source) load(ctx context.Context) (*dashboard.Controller, error) {
	if s.transactions == "" && s.withdrawals == "" {
		return nil, fmt.Errorf("at least one of -transactions or -withdrawals is required")
	}
	ref, err := s.reference()
	if err != nil {
		return nil, err
	}
	roi, err := decimal.NewFromString(s.roi)
	if err != nil {
		return nil, fmt.Errorf("invalid roi %q: %w", s.roi, err)
	}
	tl, err := analytics.ParseTimeline(s.timeline)
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if s.verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}

	c := dashboard.NewController(
		&fetcher.FileSource{TransactionsPath: s.transactions, WithdrawalsPath: s.withdrawals},
		&config.AnalyticsConfig{
			TrailingMonths:  s.months,
			WeeklyWindow:    s.window,
			DefaultTimeline: string(tl),
		},
		dashboard.WithClock(func() time.Time { return ref }),
		dashboard.WithLocation(ref.Location()),
		dashboard.WithLogger(log),
	)

	snap := c.SetUser(ctx, &models.UserProfile{ID: "local", ROI: roi})
	if snap.Error != nil && snap.Error.Kind == dashboard.AdvisoryFetchFailure && len(snap.Error.Streams) == 2 {
		return nil, fmt.Errorf("%s", snap.Error.Message)
	}
	if s.date != "" {
		c.SetDate(ref)
	}
	return c, nil
}

func (s *source) print(markdown string) {
	out := s.out
	if out == nil {
		out = os.Stdout
	}
	if !s.plain {
		if rendered, err := glamour.Render(markdown, "dark"); err == nil {
			markdown = rendered
		}
	}
	fmt.Fprint(out, markdown)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

type summaryCmd struct {
	source
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the dashboard summary cards" }
func (*summaryCmd) Usage() string {
	return `investdashctl summary -transactions <file> [-withdrawals <file>] [-d <date>] [-roi <amount>]

  Displays spend, month-over-month change, withdrawals, ROI and holdings.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	session, err := c.load(ctx)
	if err != nil {
		return fail(err)
	}
	c.print(SummaryMarkdown(session.Snapshot(), session.Views()))
	return subcommands.ExitSuccess
}

type trendCmd struct {
	source
}

func (*trendCmd) Name() string     { return "trend" }
func (*trendCmd) Synopsis() string { return "display the trailing monthly spend" }
func (*trendCmd) Usage() string {
	return `investdashctl trend -transactions <file> [-d <date>] [-months n]

  Displays successful investment spend per calendar month.
`
}

func (c *trendCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *trendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.months < 1 {
		return fail(fmt.Errorf("-months must be positive"))
	}
	session, err := c.load(ctx)
	if err != nil {
		return fail(err)
	}
	c.print(TrendMarkdown(session.Views().Trend))
	return subcommands.ExitSuccess
}

type weeklyCmd struct {
	source
}

func (*weeklyCmd) Name() string     { return "weekly" }
func (*weeklyCmd) Synopsis() string { return "display weekly investments, withdrawals and ROI" }
func (*weeklyCmd) Usage() string {
	return `investdashctl weekly -transactions <file> [-withdrawals <file>] [-d <date>] [-roi <amount>] [-window n]

  Displays the weekly revenue series over ISO weeks ending with the reference week.
`
}

func (c *weeklyCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *weeklyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.window < 1 {
		return fail(fmt.Errorf("-window must be positive"))
	}
	session, err := c.load(ctx)
	if err != nil {
		return fail(err)
	}
	c.print(WeeklyMarkdown(session.Views().Weekly))
	return subcommands.ExitSuccess
}

type distributionCmd struct {
	source
	hide string
}

func (*distributionCmd) Name() string     { return "distribution" }
func (*distributionCmd) Synopsis() string { return "display the portfolio share per company" }
func (*distributionCmd) Usage() string {
	return `investdashctl distribution -transactions <file> [-d <date>] [-timeline week|month|year] [-hide a,b]

  Displays each company's share of successful investments in the timeline.
`
}

func (c *distributionCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.hide, "hide", "", "Comma separated companies to leave out")
}

func (c *distributionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	session, err := c.load(ctx)
	if err != nil {
		return fail(err)
	}
	for _, name := range strings.Split(c.hide, ",") {
		if name = strings.TrimSpace(name); name != "" {
			session.Legend().Toggle(name)
		}
	}

	views := session.Views()
	visible := make([]dashboard.LegendEntry, 0, len(views.Distribution))
	for _, e := range views.Distribution {
		if e.Visible {
			visible = append(visible, e)
		}
	}
	c.print(DistributionMarkdown(views.Timeline, visible))
	return subcommands.ExitSuccess
}
