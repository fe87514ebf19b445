package backend

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"

	"github.com/jo-hoe/skinscan/internal/imaging"
)

// InputSize is the edge length images are resized to before classification.
const InputSize = 224

// DiseaseClasses are the HAM10000 labels in model output order.
var DiseaseClasses = []string{
	"Melanoma",
	"Basal Cell Carcinoma",
	"Benign Keratosis",
	"Dermatofibroma",
	"Melanocytic Nevus",
	"Vascular Lesion",
	"Actinic Keratosis",
}

// Classifier turns a preprocessed InputSize×InputSize image into one probability
// per entry of DiseaseClasses.
type Classifier interface {
	Classify(img *image.RGBA) ([]float64, error)
}

// Preprocess decodes an uploaded image and resizes it to the classifier input.
func Preprocess(data []byte) (*image.RGBA, error) {
	src, format, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("%s image has no pixels", format)
	}
	return imaging.Resize(src, InputSize, InputSize), nil
}

// FallbackClassifier stands in for a trained model. One class dominates with
// 70-95% before normalization; the rest share the remainder. The draw is seeded
// by the pixel content so the same image always yields the same vector.
type FallbackClassifier struct{}

func (FallbackClassifier) Classify(img *image.RGBA) ([]float64, error) {
	if img == nil {
		return nil, errors.New("no image to classify")
	}
	sum := sha256.Sum256(img.Pix)
	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))

	probs := make([]float64, len(DiseaseClasses))
	dominant := rng.IntN(len(probs))
	probs[dominant] = 0.7 + rng.Float64()*0.25
	for i := range probs {
		if i != dominant {
			probs[i] = rng.Float64() * (1 - probs[dominant]) / float64(len(probs)-1)
		}
	}
	normalize(probs)
	return probs, nil
}

func normalize(probs []float64) {
	var total float64
	for _, p := range probs {
		total += p
	}
	if total == 0 {
		return
	}
	for i := range probs {
		probs[i] /= total
	}
}

// Aggregate averages per-image probability vectors and returns the arg-max class
// index with its averaged probability as a percentage.
func Aggregate(vectors [][]float64) (int, float64, error) {
	if len(vectors) == 0 {
		return 0, 0, errors.New("no probability vectors to aggregate")
	}
	avg := make([]float64, len(DiseaseClasses))
	for i, v := range vectors {
		if len(v) != len(avg) {
			return 0, 0, fmt.Errorf("vector %d has %d classes, expected %d", i, len(v), len(avg))
		}
		for j, p := range v {
			avg[j] += p
		}
	}

	best := 0
	for j := range avg {
		avg[j] /= float64(len(vectors))
		if avg[j] > avg[best] {
			best = j
		}
	}
	return best, avg[best] * 100, nil
}
