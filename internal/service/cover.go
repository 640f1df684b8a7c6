package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	// Decoders for the accepted cover formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/MoonJiyun2/IdeaShelf/internal/storage"
	apperrors "github.com/MoonJiyun2/IdeaShelf/pkg/errors"
	"github.com/MoonJiyun2/IdeaShelf/pkg/slug"
)

// DefaultMaxCoverSize bounds an uploaded cover when no limit is configured.
const DefaultMaxCoverSize = 5 << 20

// coverTimeLayout prefixes stored names so that two uploads of the same
// file never collide.
const coverTimeLayout = "20060102T150405.000000000"

// Cover error messages shown to users.
const (
	msgUnreadableImage = "이미지를 읽을 수 없습니다."
	msgCoverTooLarge   = "표지 이미지는 %s 이하만 올릴 수 있습니다."
)

// CoverService validates and stores book cover images.
type CoverService struct {
	storage storage.Storage
	maxSize int64
	now     func() time.Time
	logger  *slog.Logger
}

// NewCoverService creates a cover service. maxSize <= 0 means
// DefaultMaxCoverSize.
func NewCoverService(store storage.Storage, maxSize int64, logger *slog.Logger) *CoverService {
	if maxSize <= 0 {
		maxSize = DefaultMaxCoverSize
	}
	return &CoverService{
		storage: store,
		maxSize: maxSize,
		now:     time.Now,
		logger:  logger,
	}
}

// MaxSize returns the largest accepted cover in bytes.
func (s *CoverService) MaxSize() int64 {
	return s.maxSize
}

// FormatSize renders a byte limit for users: whole kilobytes below 1 MiB and
// whole megabytes above, both rounded up so the label never understates it.
func FormatSize(n int64) string {
	const kb, mb = 1 << 10, 1 << 20
	if n < mb {
		return fmt.Sprintf("%dKB", (n+kb-1)/kb)
	}
	return fmt.Sprintf("%dMB", (n+mb-1)/mb)
}

// CoverTooLargeMessage is the user message for a cover over maxSize bytes.
func CoverTooLargeMessage(maxSize int64) string {
	return fmt.Sprintf(msgCoverTooLarge, FormatSize(maxSize))
}

// Save reads at most MaxSize bytes from r, checks that they decode as a
// JPEG, PNG, GIF or WebP image and stores them under
// "<UTC timestamp>_<sanitised filename>". Nothing is stored when decoding
// fails.
func (s *CoverService) Save(ctx context.Context, filename string, r io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, apperrors.InvalidInput(CoverTooLargeMessage(s.maxSize))
	}

	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.InfoContext(ctx, "rejected cover upload",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.InvalidInput(msgUnreadableImage)
	}

	name := s.now().UTC().Format(coverTimeLayout) + "_" + slug.Filename(filename)
	res, err := s.storage.Upload(ctx, &storage.UploadInput{
		Name:        name,
		ContentType: "image/" + format,
		Size:        int64(len(data)),
		Data:        bytes.NewReader(data),
	})
	if err != nil {
		return nil, fmt.Errorf("store cover: %w", err)
	}

	s.logger.InfoContext(ctx, "cover stored",
		slog.String("key", res.Key),
		slog.String("format", format),
		slog.Int("size", len(data)),
	)
	return res, nil
}

// Discard deletes a stored cover that ended up unused. Failures are only
// logged.
func (s *CoverService) Discard(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete unused cover",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// URL returns the public URL for a stored cover, or "" when it cannot be
// resolved.
func (s *CoverService) URL(ctx context.Context, key string) string {
	url, err := s.storage.GetURL(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cover url unavailable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}
