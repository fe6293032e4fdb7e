package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/usagebar/internal/usage"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
	ColorSelected        = tcell.NewHexColor(0x89b4fa)
	ColorSelectedText    = tcell.NewHexColor(0x1e1e2e)
)

// Indicator icons
const (
	IconOK       = "●"
	IconAlert    = "◉"
	IconNoData   = "○"
	IconFetching = "⟳"
	IconError    = "✗"
	IconSetup    = "◻"
)

// IndicatorIcon picks the status indicator for st. flash alternates the alert
// icon with the normal one so an alerting indicator blinks.
func IndicatorIcon(st usage.State, threshold float64, flash bool) (string, tcell.Color) {
	switch {
	case !st.Started:
		return IconSetup, ColorTextMuted
	case st.InFlight && !st.Snapshot.HasData:
		return IconFetching, ColorAccent
	case !st.Snapshot.HasData && st.LastError != nil:
		return IconError, ColorError
	case !st.Snapshot.HasData:
		return IconNoData, ColorTextMuted
	case st.Snapshot.Alerting(threshold):
		if flash {
			return IconAlert, ColorError
		}
		return IconOK, ColorError
	case st.LastError != nil:
		return IconOK, ColorWarning
	default:
		return IconOK, FractionColor(maxFraction(st.Snapshot))
	}
}

// FractionColor grades a used fraction green, yellow, then red.
func FractionColor(f float64) tcell.Color {
	switch {
	case f >= 0.8:
		return ColorError
	case f >= 0.6:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

func maxFraction(s usage.Snapshot) float64 {
	if s.SessionFraction > s.WeeklyFraction {
		return s.SessionFraction
	}
	return s.WeeklyFraction
}
