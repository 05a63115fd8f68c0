package imaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const discardTimeout = 10 * time.Second

// BlobStore is the remote object store the pipeline writes compressed
// images to. Remove is used for best-effort cleanup only.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, url string) error
}

// File is one user-submitted image awaiting ingestion.
type File struct {
	Data        []byte
	ContentType string
	Size        int64
	Filename    string
}

// Options bound a single ingestion call site. Zero values fall back to the
// shared defaults; MaxFileBytes differs between the single-upload and batch
// entry points and is always set by the caller.
type Options struct {
	MaxFileBytes int64
	MaxDimension int
	TargetBytes  int64
	Quality      int
	KeyPrefix    string
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = defaultMaxDimension
	}
	if o.TargetBytes <= 0 {
		o.TargetBytes = defaultTargetBytes
	}
	if o.Quality <= 0 {
		o.Quality = defaultQuality
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = "assets"
	}
	return o
}

// ValidationError reports a file (or a whole batch) rejected before upload.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Filename == "" {
		return e.Reason
	}
	return fmt.Sprintf("file %s: %s", e.Filename, e.Reason)
}

// Pipeline validates, compresses and uploads image batches.
type Pipeline struct {
	store BlobStore
	opts  Options
}

// NewPipeline creates a pipeline writing to store with the given bounds.
func NewPipeline(store BlobStore, opts Options) *Pipeline {
	return &Pipeline{store: store, opts: opts.withDefaults()}
}

// Ingest validates every file, then compresses and uploads them concurrently,
// returning existing followed by the new URLs in submission order. The batch
// is all-or-nothing: the count ceiling and per-file checks run before any
// network call, and when any file fails later the blobs already written for
// this batch are removed best-effort and an error naming the file is
// returned. The existing list is never modified.
func (p *Pipeline) Ingest(ctx context.Context, files []File, existing []string, maxCount int) ([]string, error) {
	if p == nil || p.store == nil {
		return nil, errors.New("imaging: blob store is not configured")
	}
	if len(files) == 0 {
		return append([]string(nil), existing...), nil
	}

	if maxCount > 0 && len(existing)+len(files) > maxCount {
		return nil, &ValidationError{Reason: fmt.Sprintf("image count exceeds the limit of %d", maxCount)}
	}
	for i := range files {
		if err := p.validate(&files[i]); err != nil {
			return nil, err
		}
	}

	uploaded := make([]string, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range files {
		index := i
		file := files[i]
		group.Go(func() error {
			compressed, err := Compress(file.Data, p.opts.MaxDimension, p.opts.TargetBytes, p.opts.Quality)
			if err != nil {
				return &ValidationError{Filename: file.Filename, Reason: err.Error()}
			}

			url, err := p.store.Upload(groupCtx, p.objectName(file.Filename), compressed, "image/jpeg")
			if err != nil {
				return fmt.Errorf("upload %s: %w", file.Filename, err)
			}
			uploaded[index] = url
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		p.discard(uploaded)
		return nil, err
	}

	result := make([]string, 0, len(existing)+len(uploaded))
	result = append(result, existing...)
	result = append(result, uploaded...)
	return result, nil
}

// validate runs the cheap per-file checks that must precede any decode or
// network traffic.
func (p *Pipeline) validate(file *File) error {
	if !isAllowedImageType(file.ContentType) {
		return &ValidationError{Filename: file.Filename, Reason: fmt.Sprintf("unsupported content type %q", file.ContentType)}
	}
	size := file.Size
	if size <= 0 {
		size = int64(len(file.Data))
	}
	if p.opts.MaxFileBytes > 0 && size > p.opts.MaxFileBytes {
		return &ValidationError{Filename: file.Filename, Reason: fmt.Sprintf("size exceeds %d bytes", p.opts.MaxFileBytes)}
	}
	return nil
}

// discard removes blobs written before a batch failed. Best effort.
func (p *Pipeline) discard(urls []string) {
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()

	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := p.store.Remove(ctx, url); err != nil {
			log.Printf("imaging: discard uploaded blob %s failed: %v", url, err)
		}
	}
}

// objectName derives a practically unique object key from the namespace
// prefix, a millisecond timestamp, a random chunk and the original filename.
func (p *Pipeline) objectName(filename string) string {
	return fmt.Sprintf("%s/%d-%s-%s.jpg", p.opts.KeyPrefix, time.Now().UnixMilli(), uuidChunk(), sanitizeFilename(filename))
}

func isAllowedImageType(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return true
	case "image/jpeg", "image/pjpeg":
		return true
	case "image/webp":
		return true
	case "image/gif":
		return true
	default:
		return false
	}
}

// sanitizeFilename keeps the base name without extension, reduced to
// key-safe runes.
func sanitizeFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}

func uuidChunk() string {
	id := uuid.NewString()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
