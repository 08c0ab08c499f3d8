// Package view turns dashboard state into the view-models a map or list
// renderer consumes. Nothing here draws; it only decides positions, colours
// and text.
package view

import (
	"fmt"
	"strconv"
	"time"

	"github.com/poubelles/poubelles-backend/internal/bins/domain"
	"github.com/poubelles/poubelles-backend/internal/dashboard/state"
)

// Severity colours shared by markers, gauges, list accents and details
const (
	ColorCritical = "#e74c3c"
	ColorWarning  = "#f39c12"
	ColorNormal   = "#2ecc71"
)

// Gauge label colours
const (
	LabelLight = "#fff"
	LabelDark  = "#333"
)

// Map defaults
const (
	TileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultZoom = 13

	markerIconURL = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-2x-%s.png"
)

// DefaultCenter is the initial map centre (Paris)
var DefaultCenter = LatLng{Lat: 48.8566, Lng: 2.3522}

// LatLng is a map coordinate
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Color returns the display colour for a severity
func Color(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return ColorCritical
	case domain.SeverityWarning:
		return ColorWarning
	default:
		return ColorNormal
	}
}

// MarkerIcon returns the marker image for a severity
func MarkerIcon(s domain.Severity) string {
	name := "green"
	switch s {
	case domain.SeverityCritical:
		name = "red"
	case domain.SeverityWarning:
		name = "orange"
	}
	return fmt.Sprintf(markerIconURL, name)
}

// LabelColor is the text colour drawn over a gauge filled to niveau
func LabelColor(niveau int) string {
	if niveau > domain.WarningThreshold {
		return LabelLight
	}
	return LabelDark
}

// Percent formats a fill level for display
func Percent(niveau int) string {
	return strconv.Itoa(niveau) + "%"
}

// Popup is the content shown when a marker is opened
type Popup struct {
	Title    string `json:"title"`
	Niveau   string `json:"niveau"`
	BarWidth string `json:"barWidth"`
	BarColor string `json:"barColor"`
}

// Marker is one bin on the map
type Marker struct {
	ID       int64           `json:"id"`
	Position LatLng          `json:"position"`
	Severity domain.Severity `json:"severity"`
	Icon     string          `json:"icon"`
	Popup    Popup           `json:"popup"`
}

// MapView is everything a map renderer needs
type MapView struct {
	Center  LatLng   `json:"center"`
	Zoom    int      `json:"zoom"`
	TileURL string   `json:"tileUrl"`
	Markers []Marker `json:"markers"`
}

// ListRow is one entry of the bin list
type ListRow struct {
	ID           int64           `json:"id"`
	Nom          string          `json:"nom"`
	Niveau       string          `json:"niveau"`
	Severity     domain.Severity `json:"severity"`
	Color        string          `json:"color"`
	Selected     bool            `json:"selected"`
	ShowBinShape bool            `json:"showBinShape"`
}

// Details describes the selected bin
type Details struct {
	ID         int64   `json:"id"`
	Nom        string  `json:"nom"`
	Niveau     string  `json:"niveau"`
	Color      string  `json:"color"`
	LabelColor string  `json:"labelColor"`
	GaugeFill  string  `json:"gaugeFill"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// StatsPanel is the summary header
type StatsPanel struct {
	Total            int    `json:"total"`
	Pleines          int    `json:"pleines"`
	MoyenRemplissage string `json:"moyenRemplissage"`
}

// Page is the full dashboard view
type Page struct {
	Stats       StatsPanel `json:"stats"`
	Map         MapView    `json:"map"`
	List        []ListRow  `json:"list"`
	ListVisible bool       `json:"listVisible"`
	Compact     bool       `json:"compact"`
	MenuOpen    bool       `json:"menuOpen"`
	Details     *Details   `json:"details,omitempty"`
	Loaded      bool       `json:"loaded"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewMarker builds the map marker for a bin
func NewMarker(b domain.BinRecord) Marker {
	sev := b.Severity()
	return Marker{
		ID:       b.ID,
		Position: LatLng{Lat: b.Latitude, Lng: b.Longitude},
		Severity: sev,
		Icon:     MarkerIcon(sev),
		Popup: Popup{
			Title:    b.Nom,
			Niveau:   Percent(b.Niveau),
			BarWidth: Percent(b.Niveau),
			BarColor: Color(sev),
		},
	}
}

// NewDetails builds the details panel for a selected bin
func NewDetails(b domain.BinRecord) *Details {
	return &Details{
		ID:         b.ID,
		Nom:        b.Nom,
		Niveau:     Percent(b.Niveau),
		Color:      Color(b.Severity()),
		LabelColor: LabelColor(b.Niveau),
		GaugeFill:  Percent(b.Niveau),
		Latitude:   b.Latitude,
		Longitude:  b.Longitude,
	}
}

// NewStatsPanel formats stats for display
func NewStatsPanel(s domain.DashboardStats) StatsPanel {
	return StatsPanel{
		Total:            s.Total,
		Pleines:          s.Pleines,
		MoyenRemplissage: Percent(s.MoyenRemplissage),
	}
}

// Build derives the page from a state snapshot
func Build(s state.Snapshot) Page {
	page := Page{
		Stats: NewStatsPanel(s.Stats),
		Map: MapView{
			Center:  DefaultCenter,
			Zoom:    DefaultZoom,
			TileURL: TileURL,
			Markers: make([]Marker, 0, len(s.Bins)),
		},
		List:        make([]ListRow, 0, len(s.Bins)),
		ListVisible: s.Layout.ListVisible(),
		Compact:     s.Layout.IsCompact(),
		MenuOpen:    s.Layout.MenuOpen,
		Loaded:      s.Loaded,
		UpdatedAt:   s.UpdatedAt,
	}

	showShape := s.Layout.ShowBinShape()
	for _, b := range s.Bins {
		page.Map.Markers = append(page.Map.Markers, NewMarker(b))

		sev := b.Severity()
		page.List = append(page.List, ListRow{
			ID:           b.ID,
			Nom:          b.Nom,
			Niveau:       Percent(b.Niveau),
			Severity:     sev,
			Color:        Color(sev),
			Selected:     s.Selected != nil && s.Selected.ID == b.ID,
			ShowBinShape: showShape,
		})
	}

	if s.Selected != nil {
		page.Details = NewDetails(*s.Selected)
	}
	return page
}
