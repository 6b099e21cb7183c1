package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/medprep/mcqgen/internal/ui/theme"
)

const bannerArt = `
 ███╗   ███╗ ██████╗ ██████╗
 ████╗ ████║██╔════╝██╔═══██╗
 ██╔████╔██║██║     ██║   ██║
 ██║╚██╔╝██║██║     ██║▄▄ ██║
 ██║ ╚═╝ ██║╚██████╗╚██████╔╝
 ╚═╝     ╚═╝ ╚═════╝ ╚══▀▀═╝`

const bannerCompact = "M C Q"

// RenderBanner returns the MCQ banner, or a compact form for terminals
// narrower than 40 columns.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < 40 {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
