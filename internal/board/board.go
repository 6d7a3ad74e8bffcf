package board

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/phase"
)

// Entry is one flight on the board
type Entry struct {
	Callsign       string          `json:"callsign"`
	Hex            string          `json:"hex,omitempty"`
	Phase          phase.Label     `json:"phase"`
	PhaseDisplay   string          `json:"phase_display"`
	Direction      phase.Direction `json:"direction"`
	DirectionLabel string          `json:"direction_label"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	DistanceNM     float64         `json:"distance_nm"`
	BearingMag     *float64        `json:"bearing_mag,omitempty"` // Magnetic bearing from the station, degrees
	Position       geo.Coordinate  `json:"position"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Line renders the entry as a console readout line
func (e Entry) Line() string {
	return fmt.Sprintf("%s, %s, %s, Distance: %.2f NM", e.Callsign, e.Phase.Display(), e.DirectionLabel, e.DistanceNM)
}

// Board holds the entries of the latest completed cycle
type Board struct {
	mu        sync.RWMutex
	entries   []Entry
	index     map[string]int
	updatedAt time.Time
}

// New creates an empty board
func New() *Board {
	return &Board{index: make(map[string]int)}
}

// Replace swaps the board contents for a new cycle.
// Entries are kept sorted by distance, nearest first.
func (b *Board) Replace(entries []Entry, at time.Time) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DistanceNM < sorted[j].DistanceNM
	})

	index := make(map[string]int, len(sorted))
	for i, e := range sorted {
		index[strings.ToUpper(e.Callsign)] = i
	}

	b.mu.Lock()
	b.entries = sorted
	b.index = index
	b.updatedAt = at
	b.mu.Unlock()
}

// All returns a copy of the current entries, nearest first
func (b *Board) All() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Get returns the entry for a callsign
func (b *Board) Get(callsign string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i, ok := b.index[strings.ToUpper(strings.TrimSpace(callsign))]
	if !ok {
		return Entry{}, false
	}
	return b.entries[i], true
}

// Len returns the number of entries on the board
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// UpdatedAt returns the time of the last Replace
func (b *Board) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// Summary counts the current entries per phase code
func (b *Board) Summary() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return summarize(b.entries)
}

// Filter returns the entries matching every non-nil criterion
func (b *Board) Filter(label *phase.Label, direction *phase.Direction) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return filter(b.entries, label, direction)
}

// View is a consistent read of one cycle
type View struct {
	Entries   []Entry
	Summary   map[string]int // whole board, ignoring filters
	UpdatedAt time.Time
}

// View returns the filtered entries, the summary and the cycle time under a single lock
func (b *Board) View(label *phase.Label, direction *phase.Direction) View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return View{
		Entries:   filter(b.entries, label, direction),
		Summary:   summarize(b.entries),
		UpdatedAt: b.updatedAt,
	}
}

func summarize(entries []Entry) map[string]int {
	summary := make(map[string]int)
	for _, e := range entries {
		summary[e.Phase.Code()]++
	}
	return summary
}

// filter copies the matching entries; the result never aliases the board
func filter(entries []Entry, label *phase.Label, direction *phase.Direction) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if label != nil && e.Phase != *label {
			continue
		}
		if direction != nil && e.Direction != *direction {
			continue
		}
		out = append(out, e)
	}
	return out
}
