package backend

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestFallbackClassifier(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	img.Set(10, 10, color.RGBA{R: 255, A: 255})

	first, err := FallbackClassifier{}.Classify(img)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	second, _ := FallbackClassifier{}.Classify(img)

	if len(first) != len(DiseaseClasses) {
		t.Fatalf("expected %d probabilities, got %d", len(DiseaseClasses), len(first))
	}
	var total, top float64
	for i, p := range first {
		if p < 0 || p > 1 {
			t.Errorf("probability %d out of range: %v", i, p)
		}
		if p != second[i] {
			t.Errorf("probability %d differs between runs", i)
		}
		total += p
		top = math.Max(top, p)
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", total)
	}
	if top < 0.6 {
		t.Errorf("expected a dominant class, top probability %v", top)
	}
}

func TestAggregate(t *testing.T) {
	a := []float64{0.1, 0.6, 0.1, 0.05, 0.05, 0.05, 0.05}
	b := []float64{0.5, 0.2, 0.1, 0.05, 0.05, 0.05, 0.05}

	idx, confidence, err := Aggregate([][]float64{a, b})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected class 1, got %d", idx)
	}
	if math.Abs(confidence-40) > 1e-9 {
		t.Errorf("expected confidence 40, got %v", confidence)
	}

	if _, _, err := Aggregate(nil); err == nil {
		t.Error("expected error for no vectors")
	}
	if _, _, err := Aggregate([][]float64{{1}}); err == nil {
		t.Error("expected error for short vector")
	}
}

func TestPreprocess(t *testing.T) {
	img, err := Preprocess(testPNG(t, color.White))
	if err != nil {
		t.Fatalf("Preprocess error: %v", err)
	}
	if img.Bounds().Dx() != InputSize || img.Bounds().Dy() != InputSize {
		t.Errorf("unexpected size %v", img.Bounds())
	}
	if _, err := Preprocess([]byte("garbage")); err == nil {
		t.Error("expected decode error")
	}
}
