package report

import "fmt"

type RenderErrorKind string

const ImageEmbedFailed RenderErrorKind = "image_embed_failed"

// RenderError is a recovered rendering problem. The document is still produced.
type RenderError struct {
	Kind RenderErrorKind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("report %s: %v", e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func (e *RenderError) Is(target error) bool {
	t, ok := target.(*RenderError)
	return ok && t.Kind == e.Kind
}
