package output

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// ProgressBar renders a fixed-width bar for the given completion ratio.
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	percent := float64(current) / float64(total)
	filled := min(int(percent*float64(width)), width)
	var b strings.Builder
	b.WriteString(symbols["bullet"])
	b.WriteString(strings.Repeat(symbols["hline"], filled))
	b.WriteString(strings.Repeat(" ", width-filled))
	b.WriteString(symbols["bullet"])
	return dimStyle.Render(fmt.Sprintf("%s %.1f%%", b.String(), percent*100))
}

func terminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return width, height
}

func wrapText(text string, indent int) []string {
	width, _ := terminalSize()
	maxWidth := width - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	count := 0
	for _, r := range text {
		if count+1 > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
			count = 0
		}
		current.WriteRune(r)
		count++
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
