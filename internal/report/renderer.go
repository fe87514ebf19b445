package report

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jo-hoe/skinscan/internal/history"
	"github.com/jo-hoe/skinscan/internal/imaging"
	"github.com/jo-hoe/skinscan/internal/prediction"
	"github.com/jo-hoe/skinscan/internal/session"
)

//go:embed assets/logo.svg
var logoSVG []byte

const (
	// BarTrackWidth is the width of the confidence bar at 100%.
	BarTrackWidth = 80.0

	DefaultImageCacheSize = 32

	previewPixels = 480
	logoPixels    = 128
	marginTop     = 20.0
	bodyBottom    = 275.0
	tipLineHeight = 5.0
	tipWrapWidth  = 160.0

	DisclaimerText = "This AI prediction is for informational purposes only and should not replace " +
		"professional medical advice. Always consult with a qualified healthcare provider for accurate " +
		"diagnosis and treatment. This report is generated by Dr. SkinAI automated system."
	brandingLine = "Dr. SkinAI - Advanced Skin Disease Detection System"
)

// Tags of ops that callers and tests look up with Document.Find.
const (
	TagConfidenceTrack = "confidence-track"
	TagConfidenceFill  = "confidence-fill"
	TagConfidenceLabel = "confidence-label"
	TagDisease         = "disease"
	TagScanImage       = "scan-image"
	TagLogo            = "logo"
	TagDisclaimer      = "disclaimer"
	TagTip             = "tip"
	TagFooter          = "footer"
)

type Options struct {
	Clock          func() time.Time
	Logger         *slog.Logger
	ImageCacheSize int
}

// Renderer lays out scan reports. It is safe for concurrent use.
type Renderer struct {
	clock  func() time.Time
	logger *slog.Logger
	images *lru.Cache[string, *Image]
	logo   *Image
}

func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ImageCacheSize <= 0 {
		opts.ImageCacheSize = DefaultImageCacheSize
	}

	images, err := lru.New[string, *Image](opts.ImageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create report image cache: %w", err)
	}

	r := &Renderer{
		clock:  opts.Clock,
		logger: opts.Logger.With("component", "report"),
		images: images,
	}

	logoPNG, err := imaging.RenderSVGToPNG(logoSVG, logoPixels, logoPixels, toRGBA(colorPrimary))
	if err != nil {
		// the header falls back to drawn circles
		r.logger.Warn("failed to render report logo", "error", err)
	} else {
		r.logo = &Image{Key: "logo", PNG: logoPNG}
	}
	return r, nil
}

// FromPrediction describes a prediction that has no history record yet.
func FromPrediction(p prediction.Prediction, at time.Time) history.ScanRecord {
	return history.ScanRecord{
		Disease:    p.Disease,
		Confidence: p.Confidence,
		Timestamp:  at,
		Image:      p.Image,
		Provenance: history.Optimistic,
	}
}

// Render lays out the report of record for profile. It never fails: an image
// that cannot be embedded is left out and reported in Document.Warnings.
func (r *Renderer) Render(record history.ScanRecord, profile session.Session) *Document {
	now := r.clock()
	b := newBuilder()
	doc := &Document{
		FileName:    FileName(record.Disease, now),
		Width:       PageWidth,
		Height:      PageHeight,
		GeneratedAt: now,
		Tips:        Tips(record.Disease),
	}

	r.header(b, now)
	patient(b, record, profile)
	if record.Image != "" {
		if err := r.scanImage(b, record.Image); err != nil {
			rerr := &RenderError{Kind: ImageEmbedFailed, Err: err}
			r.logger.Warn("continuing report without scan image", "record_id", record.ID, "error", rerr)
			doc.Warnings = append(doc.Warnings, rerr)
		}
	}
	results(b, record)
	tips(b, doc.Tips)
	disclaimer(b)
	footer(b, now)

	doc.Pages = b.pages
	return doc
}

func (r *Renderer) header(b *builder, now time.Time) {
	b.add(Op{Kind: OpRect, Tag: "header", X: 0, Y: 0, W: PageWidth, H: 40, Fill: colorPrimary})
	if r.logo != nil {
		b.add(Op{Kind: OpImage, Tag: TagLogo, X: 12, Y: 12, W: 16, H: 16, Image: r.logo})
	} else {
		b.add(Op{Kind: OpCircle, Tag: TagLogo, X: 20, Y: 20, R: 8, Fill: colorWhite})
		b.add(Op{Kind: OpCircle, X: 20, Y: 20, R: 6, Fill: colorPrimary})
	}
	b.text(35, 18, "Dr. SkinAI", 24, true, colorWhite)
	b.text(35, 26, "Skin Disease Detection Report", 10, false, colorWhite)
	b.text(150, 20, "Report Date: "+now.Format("2006-01-02"), 10, false, colorWhite)
}

func patient(b *builder, record history.ScanRecord, profile session.Session) {
	name := profile.DisplayName
	if name == "" {
		name = "N/A"
	}
	scanDate := "N/A"
	if !record.Timestamp.IsZero() {
		scanDate = record.Timestamp.Format("2006-01-02 15:04")
	}

	b.text(20, 50, "Patient Information", 12, true, colorPrimary)
	b.text(20, 58, "Name: "+name, 10, false, colorText)
	b.text(20, 65, fmt.Sprintf("Patient ID: #%06d", profile.SubjectID), 10, false, colorText)
	b.text(20, 72, "Scan Date: "+scanDate, 10, false, colorText)
}

func (r *Renderer) scanImage(b *builder, uri string) error {
	img, err := r.prepareImage(uri)
	if err != nil {
		return err
	}
	b.text(20, 85, "Scan Image", 12, true, colorPrimary)
	b.add(Op{Kind: OpImage, Tag: TagScanImage, X: 20, Y: 90, W: 60, H: 60, Image: img})
	return nil
}

// prepareImage decodes a data URI preview and fits it into the square image
// slot. Results are cached by content.
func (r *Renderer) prepareImage(uri string) (*Image, error) {
	sum := sha256.Sum256([]byte(uri))
	key := hex.EncodeToString(sum[:])
	if img, ok := r.images.Get(key); ok {
		return img, nil
	}

	_, data, err := imaging.DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}

	var png []byte
	if imaging.IsSVG(data) {
		png, err = imaging.RenderSVGToPNG(data, previewPixels, previewPixels, color.White)
		if err != nil {
			return nil, err
		}
	} else {
		src, _, err := imaging.Decode(data)
		if err != nil {
			return nil, err
		}
		bounds := src.Bounds()
		if imaging.IsPNG(data) && bounds.Dx() == previewPixels && bounds.Dy() == previewPixels {
			// already slot sized
			png = data
		} else {
			png, err = imaging.EncodePNG(imaging.Fit(src, previewPixels, previewPixels, color.White))
			if err != nil {
				return nil, err
			}
		}
	}

	img := &Image{Key: key, PNG: png}
	r.images.Add(key, img)
	return img, nil
}

func results(b *builder, record history.ScanRecord) {
	disease := record.Disease
	if disease == "" {
		disease = "N/A"
	}

	b.add(Op{Kind: OpRect, Tag: "results-band", X: 90, Y: 85, W: 100, H: 8, Fill: colorAccent})
	b.text(95, 90, "Analysis Results", 11, true, colorWhite)
	b.text(95, 100, "Predicted Condition:", 10, false, colorText)
	b.addText(Op{Tag: TagDisease, X: 95, Y: 108, Text: disease, FontSize: 14, Bold: true, Fill: colorPrimary})
	b.text(95, 118, "Confidence Score:", 10, false, colorText)
	b.addText(Op{Tag: TagConfidenceLabel, X: 95, Y: 126, Text: FormatConfidence(record.Confidence), FontSize: 12, Bold: true, Fill: colorAccent})
	b.add(Op{Kind: OpRect, Tag: TagConfidenceTrack, X: 95, Y: 130, W: BarTrackWidth, H: 6, Fill: colorTrack})
	b.add(Op{Kind: OpRect, Tag: TagConfidenceFill, X: 95, Y: 130, W: BarWidth(record.Confidence), H: 6, Fill: colorAccent})
}

func tips(b *builder, tips []string) {
	b.add(Op{Kind: OpRect, Tag: "tips-band", X: 20, Y: 160, W: 170, H: 8, Fill: colorPrimary})
	b.text(25, 165, "Consultation Tips", 11, true, colorWhite)

	y := 175.0
	for i, tip := range tips {
		for _, line := range b.split(fmt.Sprintf("%d. %s", i+1, tip), 9, false, tipWrapWidth) {
			if y > bodyBottom {
				b.newPage()
				y = marginTop
			}
			b.addText(Op{Tag: TagTip, X: 25, Y: y, Text: line, FontSize: 9, Fill: colorText})
			y += tipLineHeight
		}
	}
	b.y = y
}

func disclaimer(b *builder) {
	y := b.y + 5
	const height = 25.0
	if y+height > bodyBottom {
		b.newPage()
		y = marginTop
	}
	b.add(Op{Kind: OpRect, Tag: TagDisclaimer, X: 20, Y: y, W: 170, H: height, Fill: colorWarningBg})
	b.text(25, y+5, "IMPORTANT DISCLAIMER", 8, true, colorWarningInk)
	lineY := y + 10
	for _, line := range b.split(DisclaimerText, 8, false, tipWrapWidth) {
		b.text(25, lineY, line, 8, false, colorWarningInk)
		lineY += 4
	}
}

// footer stamps every page.
func footer(b *builder, now time.Time) {
	generated := "Generated on " + now.Format("2006-01-02 15:04:05")
	for i := range b.pages {
		b.pages[i].Ops = append(b.pages[i].Ops,
			Op{Kind: OpText, Tag: TagFooter, X: PageWidth / 2, Y: 285, Text: brandingLine, FontSize: 8, Fill: colorMuted, Align: AlignCenter},
			Op{Kind: OpText, Tag: TagFooter, X: PageWidth / 2, Y: 290, Text: generated, FontSize: 8, Fill: colorMuted, Align: AlignCenter},
		)
	}
}

// BarWidth is the filled width of the confidence bar. Confidence is clamped
// to [0,100] so the fill never leaves the track.
func BarWidth(confidence float64) float64 {
	if math.IsNaN(confidence) || confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return confidence / 100 * BarTrackWidth
}

// FormatConfidence renders a percentage with at most two decimals, e.g. "87.5%".
func FormatConfidence(confidence float64) string {
	return strconv.FormatFloat(math.Round(confidence*100)/100, 'f', -1, 64) + "%"
}

func toRGBA(c Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}
