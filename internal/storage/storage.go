package storage

import (
	"context"
	"io"
)

// Storage defines the interface for cover image storage.
type Storage interface {
	// Upload stores a file and returns the reference to persist with the
	// book along with its public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes a file by the key Upload returned.
	Delete(ctx context.Context, key string) error

	// GetURL returns the URL browsers load the file from.
	GetURL(ctx context.Context, key string) (string, error)
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload. Key is what gets
// stored in books.cover_path.
type UploadResult struct {
	Key string
	URL string
}
