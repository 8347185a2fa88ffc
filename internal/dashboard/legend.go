package dashboard

import (
	"sync"

	"github.com/savegress/investdash/internal/analytics"
)

// LegendEntry is one distribution share as shown in the chart legend
type LegendEntry struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Visible bool    `json:"visible"`
}

// Legend tracks which distribution slices the user has hidden. Every
// counterparty starts visible.
type Legend struct {
	mu     sync.RWMutex
	hidden map[string]bool
}

// NewLegend creates a legend with everything visible
func NewLegend() *Legend {
	return &Legend{hidden: make(map[string]bool)}
}

// Toggle flips the visibility of name and returns the new visibility
func (l *Legend) Toggle(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hidden[name] {
		delete(l.hidden, name)
		return true
	}
	l.hidden[name] = true
	return false
}

// Visible reports whether name is shown
func (l *Legend) Visible(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.hidden[name]
}

// Entries pairs shares with their visibility, keeping the share order
func (l *Legend) Entries(shares []analytics.Share) []LegendEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]LegendEntry, len(shares))
	for i, s := range shares {
		entries[i] = LegendEntry{
			Name:    s.Name,
			Value:   s.Percent,
			Visible: !l.hidden[s.Name],
		}
	}
	return entries
}

// Reset makes every slice visible again
func (l *Legend) Reset() {
	l.mu.Lock()
	l.hidden = make(map[string]bool)
	l.mu.Unlock()
}
