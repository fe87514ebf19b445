package report

import (
	"strings"

	"github.com/go-pdf/fpdf"
)

const fontFamily = "Helvetica"

type builder struct {
	pages []Page
	y     float64
	// measure holds font metrics for line wrapping; nothing is written to it.
	measure   *fpdf.Fpdf
	translate func(string) string
}

func newBuilder() *builder {
	measure := fpdf.New("P", "mm", "A4", "")
	return &builder{
		pages:     []Page{{}},
		measure:   measure,
		translate: measure.UnicodeTranslatorFromDescriptor(""),
	}
}

func (b *builder) newPage() {
	b.pages = append(b.pages, Page{})
}

func (b *builder) add(op Op) {
	last := &b.pages[len(b.pages)-1]
	last.Ops = append(last.Ops, op)
}

func (b *builder) addText(op Op) {
	op.Kind = OpText
	b.add(op)
}

func (b *builder) text(x, y float64, s string, size float64, bold bool, c Color) {
	b.addText(Op{X: x, Y: y, Text: s, FontSize: size, Bold: bold, Fill: c})
}

// split wraps s to lines no wider than width at the given font.
func (b *builder) split(s string, size float64, bold bool, width float64) []string {
	b.measure.SetFont(fontFamily, fontStyle(bold), size)
	raw := b.measure.SplitLines([]byte(b.translate(s)), width)
	if len(raw) == 0 {
		return []string{s}
	}
	lines := make([]string, 0, len(raw))
	// SplitLines works on the translated bytes; re-split the original string on the
	// same word boundaries so non-latin text survives untouched.
	words := strings.Fields(s)
	for _, line := range raw {
		n := len(strings.Fields(string(line)))
		if n > len(words) {
			n = len(words)
		}
		lines = append(lines, strings.Join(words[:n], " "))
		words = words[n:]
	}
	if len(words) > 0 {
		lines[len(lines)-1] += " " + strings.Join(words, " ")
	}
	return lines
}

func fontStyle(bold bool) string {
	if bold {
		return "B"
	}
	return ""
}
