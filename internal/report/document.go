package report

import (
	"fmt"
	"regexp"
	"time"
)

// A4 portrait, millimetres.
const (
	PageWidth  = 210.0
	PageHeight = 297.0
)

type Color struct {
	R, G, B uint8
}

var (
	colorPrimary    = Color{0, 51, 102}
	colorAccent     = Color{32, 178, 170}
	colorWhite      = Color{255, 255, 255}
	colorText       = Color{51, 51, 51}
	colorMuted      = Color{128, 128, 128}
	colorTrack      = Color{220, 220, 220}
	colorWarningBg  = Color{255, 243, 205}
	colorWarningInk = Color{133, 100, 4}
)

type OpKind string

const (
	OpRect   OpKind = "rect"
	OpCircle OpKind = "circle"
	OpText   OpKind = "text"
	OpImage  OpKind = "image"
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Image is a PNG ready to be placed on a page. Key identifies the content.
type Image struct {
	Key string
	PNG []byte
}

// Op is one drawing instruction. Rects and images use X, Y, W, H; circles use
// X, Y as centre and R; text is drawn with its baseline at Y.
type Op struct {
	Kind     OpKind
	Tag      string
	X, Y     float64
	W, H     float64
	R        float64
	Fill     Color
	Text     string
	FontSize float64
	Bold     bool
	Align    Align
	Image    *Image
}

type Page struct {
	Ops []Op
}

// Document is a fixed-layout report. It carries no I/O; see EncodePDF.
type Document struct {
	FileName    string
	Width       float64
	Height      float64
	GeneratedAt time.Time
	Pages       []Page
	// Tips are the consultation tips printed in the tips panel.
	Tips []string
	// Warnings holds the non-fatal problems met while rendering.
	Warnings []error
}

// Find returns the first op carrying tag.
func (d *Document) Find(tag string) (Op, bool) {
	for _, page := range d.Pages {
		for _, op := range page.Ops {
			if op.Tag == tag {
				return op, true
			}
		}
	}
	return Op{}, false
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName derives the download name of a report from the disease and the time
// it was generated. The disease label comes from the prediction service, so
// every run of characters other than letters, digits, '_' and '-' becomes '_'.
func FileName(disease string, t time.Time) string {
	return fmt.Sprintf("DrSkinAI_Report_%s_%d.pdf", unsafeNameChars.ReplaceAllString(disease, "_"), t.UnixMilli())
}
