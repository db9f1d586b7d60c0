package domain

import "strings"

// Timeframe selects the momentum horizon a ranked view is built for.
type Timeframe string

const (
	TimeframeSwing    Timeframe = "swing"    // days to weeks
	TimeframePosition Timeframe = "position" // weeks to months
)

// ParseTimeframe maps a request string to a known timeframe,
// defaulting to swing.
func ParseTimeframe(s string) Timeframe {
	switch strings.ToLower(s) {
	case string(TimeframePosition):
		return TimeframePosition
	default:
		return TimeframeSwing
	}
}

// Instrument identifies one tradable instrument in the universe.
// Identity is immutable; sector and exchange may be corrected by a
// periodic universe refresh.
type Instrument struct {
	Symbol   string   `json:"symbol"`
	Exchange string   `json:"exchange"`
	Sector   string   `json:"sector"`
	Currency string   `json:"currency"`
	Themes   []string `json:"themes,omitempty"`
}

// HasTheme reports whether the instrument is tagged with a theme.
func (i Instrument) HasTheme(theme string) bool {
	for _, t := range i.Themes {
		if strings.EqualFold(t, theme) {
			return true
		}
	}
	return false
}
