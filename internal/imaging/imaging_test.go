package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestScaledDimensions(t *testing.T) {
	tests := []struct {
		name                 string
		origW, origH         int
		targetW, targetH     int
		expectedW, expectedH int
	}{
		{"wide into square", 200, 100, 100, 100, 100, 50},
		{"tall into square", 100, 200, 100, 100, 50, 100},
		{"same aspect", 50, 50, 100, 100, 100, 100},
		{"extreme wide keeps one pixel", 10000, 1, 100, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaledDimensions(tt.origW, tt.origH, tt.targetW, tt.targetH)
			if w != tt.expectedW || h != tt.expectedH {
				t.Errorf("ScaledDimensions() = %dx%d, want %dx%d", w, h, tt.expectedW, tt.expectedH)
			}
		})
	}
}

func TestFit_CentersOnBackground(t *testing.T) {
	src := solidImage(40, 20, color.RGBA{R: 255, A: 255})
	dst := Fit(src, 100, 100, color.White)

	if dst.Bounds().Dx() != 100 || dst.Bounds().Dy() != 100 {
		t.Fatalf("expected 100x100 canvas, got %v", dst.Bounds())
	}
	// Top padding stays white
	if r, g, b, _ := dst.At(50, 5).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("expected white padding at (50,5), got %v", dst.At(50, 5))
	}
	// Center holds the scaled red image
	if r, g, _, _ := dst.At(50, 50).RGBA(); r < 0xf000 || g > 0x1000 {
		t.Errorf("expected red at center, got %v", dst.At(50, 50))
	}
}

func TestDataURI(t *testing.T) {
	uri := EncodeDataURI("image/png", []byte{1, 2, 3})
	if uri != "data:image/png;base64,AQID" {
		t.Fatalf("unexpected data URI %q", uri)
	}

	mimeType, data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI error: %v", err)
	}
	if mimeType != "image/png" || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("DecodeDataURI = %q %v", mimeType, data)
	}
}

func TestDecodeDataURI_Invalid(t *testing.T) {
	for _, in := range []string{"", "http://example.com/a.png", "data:image/png,raw", "data:image/png;base64"} {
		if _, _, err := DecodeDataURI(in); !errors.Is(err, ErrNotDataURI) {
			t.Errorf("DecodeDataURI(%q) error = %v, want ErrNotDataURI", in, err)
		}
	}
	if _, _, err := DecodeDataURI("data:image/png;base64,@@@"); err == nil {
		t.Error("expected error for invalid base64 payload")
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(8, 4, color.Black), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	img, format, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg format, got %q", format)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}

	if _, _, err := Decode([]byte("not a valid image")); err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestEncodePNG_Signature(t *testing.T) {
	out, err := EncodePNG(solidImage(2, 2, color.White))
	if err != nil {
		t.Fatalf("EncodePNG error: %v", err)
	}
	if !IsPNG(out) {
		t.Error("expected PNG signature on encoded output")
	}
	if IsPNG([]byte{0x89, 'P'}) {
		t.Error("short input must not be detected as PNG")
	}
}

func TestRenderSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10" viewBox="0 0 10 10">
	<rect x="0" y="0" width="10" height="10" fill="#000000"/>
</svg>`)
	if !IsSVG(svg) {
		t.Fatal("expected SVG detection")
	}

	img, err := RenderSVG(svg, 20, 20, color.White)
	if err != nil {
		t.Fatalf("RenderSVG error: %v", err)
	}
	if r, _, _, _ := img.At(10, 10).RGBA(); r > 0x1000 {
		t.Errorf("expected black fill at center, got %v", img.At(10, 10))
	}

	if _, err := RenderSVG(svg, 0, 20, color.White); err == nil {
		t.Error("expected error for zero width")
	}
}
