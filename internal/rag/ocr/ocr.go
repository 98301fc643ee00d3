package ocr

import "context"

// TextDetectionService returns the text found in one image; found is false when the image has none.
type TextDetectionService interface {
	Detect(ctx context.Context, image []byte) (text string, found bool, err error)
}
