// Package llm normalizes heterogeneous model provider APIs into one
// token-producing contract.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"chatgate/internal/imagecheck"
)

// Message is one turn of model input.
type Message struct {
	Role    string
	Content string
}

// VisionRequest carries one image-grounded prompt. Exactly one of ImageURL
// and ImagePayload must be set. ImagePayload is base64 text or a complete
// data URL.
type VisionRequest struct {
	Prompt       string
	ImageURL     string
	ImagePayload string
	Prior        []Message
}

var (
	ErrImageInput = errors.New("llm: provide exactly one of image url or image payload")
	ErrBadPayload = errors.New("llm: image payload must be valid base64 or a data URL")
)

// Client is the provider contract. Implementations prepend the fixed master
// prompt on every call and deliver output through the chunk channel; both
// channels close when the stream ends and the error channel carries at most
// one failure. Non-streaming providers yield their whole reply as a single
// chunk so callers cannot tell the difference by shape.
type Client interface {
	Name() string
	ModelName() string
	VisionModelName() string
	Stream(ctx context.Context, messages []Message) (<-chan string, <-chan error)
	StreamVision(ctx context.Context, req VisionRequest) (<-chan string, <-chan error)
}

func validateVisionInput(req VisionRequest) error {
	if (req.ImageURL == "") == (req.ImagePayload == "") {
		return ErrImageInput
	}
	return nil
}

// imageDataURL turns a base64 payload into a data URL carrying the sniffed
// MIME type. Payloads already in data-URL form pass through untouched.
func imageDataURL(payload string) (string, error) {
	if strings.HasPrefix(payload, "data:") {
		return payload, nil
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	mime, err := imagecheck.ValidateContent(raw)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + payload, nil
}

// failStream hands back an already-terminated stream carrying one error.
func failStream(err error) (<-chan string, <-chan error) {
	chunks := make(chan string)
	close(chunks)
	errs := make(chan error, 1)
	errs <- err
	close(errs)
	return chunks, errs
}
