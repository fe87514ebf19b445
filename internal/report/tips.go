package report

// consultationTips maps a disease label to its guidance. Lookups are exact and
// case-sensitive; anything else falls back to defaultTips.
var consultationTips = map[string][]string{
	"Melanoma": {
		"Seek immediate medical attention for evaluation",
		"Avoid sun exposure and use broad-spectrum sunscreen",
		"Monitor for changes in size, shape, or color",
		"Regular skin examinations are recommended",
	},
	"Basal Cell Carcinoma": {
		"Consult a dermatologist for proper diagnosis",
		"Protect skin from UV radiation",
		"Early treatment is highly effective",
		"Regular follow-ups are important",
	},
	"Benign Keratosis": {
		"Usually harmless, but monitor for changes",
		"Can be removed if cosmetically bothersome",
		"Protect from sun exposure",
		"Regular skin checks recommended",
	},
	"Dermatofibroma": {
		"Benign growth, typically no treatment needed",
		"Monitor for any changes",
		"Can be removed if desired",
		"Usually stable over time",
	},
	"Vascular Lesion": {
		"Consult dermatologist for proper classification",
		"Treatment options vary by type",
		"Monitor for changes",
		"Some may require medical intervention",
	},
	"Actinic Keratosis": {
		"Precancerous condition requiring medical attention",
		"Sun protection is crucial",
		"Multiple treatment options available",
		"Regular monitoring by dermatologist",
	},
}

var defaultTips = []string{
	"Consult with a healthcare professional",
	"Follow medical advice for your specific condition",
	"Maintain good skin health practices",
	"Regular check-ups are important",
}

// Tips returns the consultation tips for disease, or the default set when the
// table has no entry. The result is never empty and is safe to modify.
func Tips(disease string) []string {
	tips, ok := consultationTips[disease]
	if !ok || len(tips) == 0 {
		tips = defaultTips
	}
	out := make([]string, len(tips))
	copy(out, tips)
	return out
}
