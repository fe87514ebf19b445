package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/jo-hoe/skinscan/internal/imaging"
)

// MaxImages is the largest batch a user may stage.
const MaxImages = 3

// File is one raw user selection, from a drop or a file picker.
type File struct {
	Name string
	// MIMEType as declared by the source. When empty it is sniffed from content.
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// FileFromBytes wraps in-memory content as a File.
func FileFromBytes(name, mimeType string, data []byte) File {
	return File{
		Name:     name,
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileFromPath wraps a file on disk. The MIME type is derived from the extension,
// like a browser file picker does.
func FileFromPath(path string) File {
	return File{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// StagedImage is a validated image held in memory with its preview encoding.
type StagedImage struct {
	Name     string
	MIMEType string
	Bytes    []byte
	// Preview is a data URI of Bytes.
	Preview string
}

// Buffer owns the currently staged batch.
type Buffer struct {
	mu     sync.RWMutex
	staged []StagedImage
	logger *slog.Logger
}

func NewBuffer(logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{logger: logger.With("component", "staging")}
}

// Stage validates files and, when the whole batch is acceptable, reads and encodes
// every file concurrently. The staged set is replaced and returned only after all
// files completed, in selection order. Any failure leaves the previous batch intact.
func (b *Buffer) Stage(ctx context.Context, files []File) ([]StagedImage, error) {
	if len(files) > MaxImages {
		b.logger.Warn("rejected batch", "reason", TooManyFiles, "count", len(files))
		return nil, &ValidationError{Kind: TooManyFiles}
	}
	if len(files) == 0 {
		return nil, &ValidationError{Kind: NoFiles}
	}
	for _, f := range files {
		if f.MIMEType != "" && !IsImageType(f.MIMEType) {
			b.logger.Warn("rejected batch", "reason", NonImageFile, "file", f.Name, "mime_type", f.MIMEType)
			return nil, &ValidationError{Kind: NonImageFile, File: f.Name}
		}
	}

	staged := make([]StagedImage, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			img, err := load(gctx, f, b.logger)
			if err != nil {
				return err
			}
			staged[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.logger.Warn("staging failed", "error", err)
		return nil, err
	}

	b.mu.Lock()
	b.staged = staged
	b.mu.Unlock()

	b.logger.Debug("staged batch", "count", len(staged))
	return copyImages(staged), nil
}

// Staged returns a copy of the current batch, or nil when nothing is staged.
func (b *Buffer) Staged() []StagedImage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyImages(b.staged)
}

// Clear drops the current batch.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.staged = nil
	b.mu.Unlock()
}

// IsImageType reports whether a MIME type denotes an image.
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

func load(ctx context.Context, f File, logger *slog.Logger) (StagedImage, error) {
	if err := ctx.Err(); err != nil {
		return StagedImage{}, err
	}
	if f.Open == nil {
		return StagedImage{}, fmt.Errorf("file %s has no content", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return StagedImage{}, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			logger.Error("failed to close file reader", "error", cerr, "file", f.Name)
		}
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return StagedImage{}, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}

	mimeType := f.MIMEType
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
		if !IsImageType(mimeType) {
			return StagedImage{}, &ValidationError{Kind: NonImageFile, File: f.Name}
		}
	}

	return StagedImage{
		Name:     f.Name,
		MIMEType: mimeType,
		Bytes:    data,
		Preview:  imaging.EncodeDataURI(mimeType, data),
	}, nil
}

func copyImages(images []StagedImage) []StagedImage {
	if images == nil {
		return nil
	}
	out := make([]StagedImage, len(images))
	copy(out, images)
	return out
}
