package imaging

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// NewCanvas returns an RGBA canvas of w×h filled with bg.
func NewCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, xdraw.Src)
	return dst
}

// Fit scales src into a targetWidth×targetHeight canvas, preserving its aspect
// ratio and centering it on a bg-filled background.
func Fit(src image.Image, targetWidth, targetHeight int, bg color.Color) *image.RGBA {
	dst := NewCanvas(targetWidth, targetHeight, bg)

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return dst
	}

	scaledWidth, scaledHeight := ScaledDimensions(bounds.Dx(), bounds.Dy(), targetWidth, targetHeight)
	offsetX, offsetY := centerOffset(targetWidth, targetHeight, scaledWidth, scaledHeight)

	rect := image.Rect(offsetX, offsetY, offsetX+scaledWidth, offsetY+scaledHeight)
	xdraw.CatmullRom.Scale(dst, rect, src, bounds, xdraw.Over, nil)
	return dst
}

// Resize stretches src to exactly w×h without preserving the aspect ratio.
func Resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// ScaledDimensions returns the largest size with the original aspect ratio that
// fits into the target box. Both results are at least 1.
func ScaledDimensions(originalWidth, originalHeight, targetWidth, targetHeight int) (int, int) {
	originalAspect := float64(originalWidth) / float64(originalHeight)
	targetAspect := float64(targetWidth) / float64(targetHeight)

	var scaledWidth, scaledHeight int
	if originalAspect > targetAspect {
		// Original is wider - scale to target width
		scaledWidth = targetWidth
		scaledHeight = int(float64(targetWidth) / originalAspect)
	} else {
		// Original is taller - scale to target height
		scaledHeight = targetHeight
		scaledWidth = int(float64(targetHeight) * originalAspect)
	}
	return max(scaledWidth, 1), max(scaledHeight, 1)
}

func centerOffset(targetWidth, targetHeight, scaledWidth, scaledHeight int) (int, int) {
	return (targetWidth - scaledWidth) / 2, (targetHeight - scaledHeight) / 2
}
