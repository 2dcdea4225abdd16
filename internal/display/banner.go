package display

import (
	_ "embed"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerRaw string

// RenderBanner returns the banner art and a tagline centred for the
// current terminal width. The art is shown at its native size.
func RenderBanner(tagline string) string {
	width := termWidth()

	lines := strings.Split(strings.TrimRight(bannerRaw, "\n"), "\n")
	if len(lines) == 0 {
		return ""
	}

	// Find the widest line.
	maxW := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > maxW {
			maxW = n
		}
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.Repeat(" ", padding(maxW, width)))
		b.WriteString(BannerStyle.Render(l))
		b.WriteByte('\n')
	}
	if tagline != "" {
		b.WriteByte('\n')
		b.WriteString(centre(tagline, width))
		b.WriteString(hintStyle.Render(tagline))
		b.WriteByte('\n')
	}
	return b.String()
}

// centre returns the left padding that centres s.
func centre(s string, width int) string {
	return strings.Repeat(" ", padding(utf8.RuneCountInString(s), width))
}

func padding(w, width int) int {
	if width <= w {
		return 0
	}
	return (width - w) / 2
}

// termWidth returns the current terminal column count, or 80 as fallback.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
