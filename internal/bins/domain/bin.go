// Package domain holds the bin record and the rules derived from it that both
// the service and the dashboard agree on.
package domain

import "math"

// Fill-level thresholds, in percent. A level strictly above a threshold enters the band.
const (
	CriticalThreshold = 80
	WarningThreshold  = 50
)

// BinRecord is one row of the bin inventory
type BinRecord struct {
	ID        int64   `db:"id" json:"id"`
	Nom       string  `db:"nom" json:"nom"`
	Niveau    int     `db:"niveau" json:"niveau"`
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
}

// Severity classifies a fill level
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityOf returns the band for niveau. Out-of-range values are classified as-is.
func SeverityOf(niveau int) Severity {
	switch {
	case niveau > CriticalThreshold:
		return SeverityCritical
	case niveau > WarningThreshold:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// Severity returns the record's band
func (b BinRecord) Severity() Severity {
	return SeverityOf(b.Niveau)
}

// IsFull reports whether the bin is in the critical band
func (b BinRecord) IsFull() bool {
	return b.Severity() == SeverityCritical
}

// DashboardStats summarises a snapshot
type DashboardStats struct {
	Total            int `json:"total"`
	Pleines          int `json:"pleines"`
	MoyenRemplissage int `json:"moyenRemplissage"`
}

// DeriveStats computes the summary of snapshot. An empty snapshot yields all zeros.
func DeriveStats(snapshot []BinRecord) DashboardStats {
	stats := DashboardStats{Total: len(snapshot)}
	if stats.Total == 0 {
		return stats
	}

	sum := 0
	for _, b := range snapshot {
		sum += b.Niveau
		if b.IsFull() {
			stats.Pleines++
		}
	}

	// half away from zero
	stats.MoyenRemplissage = int(math.Round(float64(sum) / float64(stats.Total)))
	return stats
}
