package interfaces

import "context"

// TextExtractor maps an image reference to the text found in it.
// Callers treat failures as soft: an error degrades to no contribution.
type TextExtractor interface {
	ExtractText(ctx context.Context, imageURL string) (string, error)
}
