package dashboard

import (
	"context"
	"testing"

	"github.com/savegress/investdash/internal/analytics"
	"github.com/savegress/investdash/pkg/models"
)

func TestRegistry(t *testing.T) {
	f := &stubFetcher{
		transactions: []models.RawTransaction{rawTx("t1", "Acme", "completed", 100, "2025-03-02T10:00:00Z")},
	}
	built := 0
	r := NewRegistry(func(userID string) *Controller {
		built++
		return newTestController(f)
	})

	c1, created := r.GetOrCreate("u1")
	if !created || c1 == nil {
		t.Fatal("expected a new session for u1")
	}
	again, created := r.GetOrCreate("u1")
	if created || again != c1 {
		t.Error("expected the existing session for u1")
	}
	c2, _ := r.GetOrCreate("u2")
	if c2 == c1 {
		t.Error("sessions must not be shared between users")
	}
	if r.Len() != 2 || built != 2 {
		t.Errorf("len = %d built = %d, want 2 and 2", r.Len(), built)
	}

	c1.SetUser(context.Background(), testUser())
	if snap := c1.Snapshot(); len(snap.Transactions) != 1 {
		t.Fatalf("expected loaded session, got %d transactions", len(snap.Transactions))
	}
	if snap := c2.Snapshot(); snap.Status != StatusIdle {
		t.Errorf("u2 session status = %s, want idle", snap.Status)
	}

	if !r.Drop("u1") {
		t.Error("expected Drop to report an existing session")
	}
	if _, ok := r.Get("u1"); ok {
		t.Error("u1 session still registered after Drop")
	}
	if snap := c1.Snapshot(); snap.Status != StatusIdle || len(snap.Transactions) != 0 {
		t.Errorf("dropped session not reset: %s with %d transactions", snap.Status, len(snap.Transactions))
	}
	if r.Drop("missing") {
		t.Error("Drop of unknown user should report false")
	}
}

func TestLegend(t *testing.T) {
	l := NewLegend()
	shares := []analytics.Share{
		{Name: "Acme", Percent: 60},
		{Name: "Beta", Percent: 40},
	}

	for _, e := range l.Entries(shares) {
		if !e.Visible {
			t.Errorf("%s should start visible", e.Name)
		}
	}

	if visible := l.Toggle("Beta"); visible {
		t.Error("first toggle should hide")
	}
	entries := l.Entries(shares)
	if entries[0].Name != "Acme" || !entries[0].Visible || entries[1].Visible || entries[1].Value != 40 {
		t.Errorf("unexpected entries %+v", entries)
	}

	if visible := l.Toggle("Beta"); !visible {
		t.Error("second toggle should show again")
	}

	l.Toggle("Acme")
	l.Reset()
	if !l.Visible("Acme") {
		t.Error("Reset should make everything visible")
	}
}

func TestReduce_DiscardsMismatchedCycle(t *testing.T) {
	s := initialState(analytics.TimelineMonth)
	s, _ = reduce(s, action{kind: actionFetchStarted, cycle: "a"})

	next, trigger := reduce(s, action{
		kind:         actionFetchCompleted,
		cycle:        "b",
		now:          testNow,
		transactions: []models.NormalizedRecord{{ID: "x"}},
	})
	if trigger != "" || next.status != StatusLoading || len(next.transactions) != 0 {
		t.Errorf("completion of another cycle was applied: %+v", next)
	}

	next, trigger = reduce(s, action{kind: actionFetchCompleted, cycle: "a", now: testNow})
	if trigger != TriggerRecords || next.status != StatusSucceeded {
		t.Errorf("completion of current cycle not applied: trigger=%q status=%s", trigger, next.status)
	}

	// a second completion of the same cycle is ignored
	if _, trigger := reduce(next, action{kind: actionFetchCompleted, cycle: "a", now: testNow}); trigger != "" {
		t.Errorf("duplicate completion produced trigger %q", trigger)
	}
}
