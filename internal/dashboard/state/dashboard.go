// Package state owns everything the dashboard renders from: the last good
// snapshot, its derived stats, the user's selection and the viewport layout.
//
// Every mutation goes through one mutex so the poll loop and user handlers are
// serialised. Readers always get copies.
package state

import (
	"sync"
	"time"

	"github.com/poubelles/poubelles-backend/internal/bins/domain"
)

// Layout breakpoints, in viewport width units
const (
	CompactBreakpoint  = 768
	BinShapeBreakpoint = 480
)

// Layout is the presentational viewport state
type Layout struct {
	Width    int  `json:"width"`
	MenuOpen bool `json:"menuOpen"`
}

// IsCompact reports whether the narrow layout applies
func (l Layout) IsCompact() bool {
	return l.Width < CompactBreakpoint
}

// ShowBinShape reports whether the decorative bin indicator is drawn
func (l Layout) ShowBinShape() bool {
	return l.Width > BinShapeBreakpoint
}

// ListVisible reports whether the bin list panel is shown. In the compact
// layout it is hidden behind the menu.
func (l Layout) ListVisible() bool {
	return !l.IsCompact() || l.MenuOpen
}

// Snapshot is a point-in-time copy of the dashboard state
type Snapshot struct {
	Bins      []domain.BinRecord
	Stats     domain.DashboardStats
	Selected  *domain.BinRecord
	Layout    Layout
	UpdatedAt time.Time
	// Loaded is false until the first successful poll
	Loaded bool
}

// Dashboard holds the client-side state
type Dashboard struct {
	mu        sync.Mutex
	bins      []domain.BinRecord
	stats     domain.DashboardStats
	selected  *domain.BinRecord
	layout    Layout
	updatedAt time.Time
	loaded    bool
}

// New creates an empty dashboard for a viewport of the given width
func New(width int) *Dashboard {
	return &Dashboard{
		bins:   []domain.BinRecord{},
		layout: Layout{Width: width},
	}
}

// Apply replaces the snapshot with bins and recomputes the stats from scratch.
// The selection is left alone.
func (d *Dashboard) Apply(bins []domain.BinRecord, at time.Time) domain.DashboardStats {
	snapshot := copyBins(bins)
	stats := domain.DeriveStats(snapshot)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.bins = snapshot
	d.stats = stats
	d.updatedAt = at
	d.loaded = true
	return stats
}

// Select stores a copy of record as the current selection
func (d *Dashboard) Select(record domain.BinRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selectLocked(record)
}

// SelectByID selects the bin with id from the current snapshot.
// It returns false and keeps the previous selection when no such bin exists.
func (d *Dashboard) SelectByID(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range d.bins {
		if b.ID == id {
			d.selectLocked(b)
			return true
		}
	}
	return false
}

func (d *Dashboard) selectLocked(record domain.BinRecord) {
	d.selected = &record
	if d.layout.IsCompact() {
		d.layout.MenuOpen = false
	}
}

// ClearSelection drops the current selection
func (d *Dashboard) ClearSelection() {
	d.mu.Lock()
	d.selected = nil
	d.mu.Unlock()
}

// Resize records a new viewport width and returns the resulting layout
func (d *Dashboard) Resize(width int) Layout {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.layout.Width = width
	return d.layout
}

// ToggleMenu flips the menu and returns the resulting layout
func (d *Dashboard) ToggleMenu() Layout {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.layout.MenuOpen = !d.layout.MenuOpen
	return d.layout
}

// Snapshot returns a deep copy of the current state
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Bins:      copyBins(d.bins),
		Stats:     d.stats,
		Layout:    d.layout,
		UpdatedAt: d.updatedAt,
		Loaded:    d.loaded,
	}
	if d.selected != nil {
		sel := *d.selected
		s.Selected = &sel
	}
	return s
}

// Stats returns the stats of the current snapshot
func (d *Dashboard) Stats() domain.DashboardStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Len returns the number of bins in the current snapshot
func (d *Dashboard) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bins)
}

// Selected returns a copy of the selection, if any
func (d *Dashboard) Selected() (domain.BinRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.selected == nil {
		return domain.BinRecord{}, false
	}
	return *d.selected, true
}

func copyBins(bins []domain.BinRecord) []domain.BinRecord {
	out := make([]domain.BinRecord, len(bins))
	copy(out, bins)
	return out
}
