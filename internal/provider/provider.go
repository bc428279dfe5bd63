package provider

import (
	"context"
	"encoding/base64"
	"fmt"
)

// LLMProvider sends one chat completion and returns the raw text.
type LLMProvider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Request is a single system/user exchange, optionally with one image.
type Request struct {
	System      string
	User        string
	Image       *Image
	Temperature float64
	MaxTokens   int
	// Model overrides the provider's default model when set.
	Model string
}

// Image is an attached picture.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURL encodes the image as a base64 data URL.
func (i *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

// CompletionError is returned for any failed completion: transport errors,
// non-2xx statuses and empty or malformed responses alike.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("upstream call failed (%s): %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
