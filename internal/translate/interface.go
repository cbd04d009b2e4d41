package translate

import "context"

// Request is a self-contained translation request for one unit.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
}

// Translator is a translation backend. It makes one attempt per call;
// retries and timeouts belong to the caller.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
	Name() string
}
