package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// EncodePDF writes doc as a PDF. Output is deterministic for a given document.
func EncodePDF(doc *Document, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("Dr. SkinAI", true)
	pdf.SetTitle("Skin Disease Detection Report", true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetCatalogSort(true)
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, op := range page.Ops {
			if err := drawOp(pdf, op, translate); err != nil {
				return err
			}
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out report %s: %w", doc.FileName, err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write report %s: %w", doc.FileName, err)
	}
	return nil
}

func drawOp(pdf *fpdf.Fpdf, op Op, translate func(string) string) error {
	switch op.Kind {
	case OpRect:
		if op.W <= 0 || op.H <= 0 {
			return nil
		}
		pdf.SetFillColor(int(op.Fill.R), int(op.Fill.G), int(op.Fill.B))
		pdf.Rect(op.X, op.Y, op.W, op.H, "F")
	case OpCircle:
		pdf.SetFillColor(int(op.Fill.R), int(op.Fill.G), int(op.Fill.B))
		pdf.Circle(op.X, op.Y, op.R, "F")
	case OpText:
		pdf.SetFont(fontFamily, fontStyle(op.Bold), op.FontSize)
		pdf.SetTextColor(int(op.Fill.R), int(op.Fill.G), int(op.Fill.B))
		text := translate(op.Text)
		x := op.X
		if op.Align == AlignCenter {
			x -= pdf.GetStringWidth(text) / 2
		}
		pdf.Text(x, op.Y, text)
	case OpImage:
		if op.Image == nil {
			return nil
		}
		options := fpdf.ImageOptions{ImageType: "PNG"}
		if pdf.GetImageInfo(op.Image.Key) == nil {
			pdf.RegisterImageOptionsReader(op.Image.Key, options, bytes.NewReader(op.Image.PNG))
		}
		pdf.ImageOptions(op.Image.Key, op.X, op.Y, op.W, op.H, false, options, 0, "")
	default:
		return fmt.Errorf("unknown report op %q", op.Kind)
	}
	return nil
}
