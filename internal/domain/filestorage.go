package domain

import (
	"context"
	"io"
)

// FileStorage abstracts where uploaded files live. Save returns a unique link
// that later identifies the file.
type FileStorage interface {
	Save(ctx context.Context, r io.Reader, filename string) (string, error)
	Delete(ctx context.Context, link string) error
}
