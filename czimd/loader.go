package czimd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/sebi06/czimetadata-tools/czi"
)

// DocumentLoadError reports that a metadata document could not be opened or parsed.
type DocumentLoadError struct {
	Source string
	Err    error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("czimd: load %s: %v", e.Source, e.Err)
}

func (e *DocumentLoadError) Unwrap() error {
	return e.Err
}

// Magic prefixes used to sniff the source format.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Loader loads metadata documents and opens CZI containers from source
// identifiers. Plain paths name local files; s3://bucket/key names an object
// in S3 and requires a client configured with WithS3.
//
// A source is sniffed by content: a ZISRAW container yields its metadata
// segment, gzip or zstd data is decompressed, anything else is parsed as XML.
type Loader struct {
	s3  ObjectAPI
	log *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithS3 enables s3:// sources using the given client.
func WithS3(client ObjectAPI) LoaderOption {
	return func(l *Loader) {
		l.s3 = client
	}
}

// WithLoaderLogger sets the logger used for load diagnostics.
func WithLoaderLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a Loader. Without options it reads local files only.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads a metadata document with a default, local-only Loader.
func Load(ctx context.Context, source string) (*Document, error) {
	return NewLoader().Load(ctx, source)
}

// Load reads and parses the metadata document of source.
// All failures are reported as *DocumentLoadError.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	ra, size, closer, err := l.open(ctx, source)
	if err != nil {
		return nil, &DocumentLoadError{Source: source, Err: err}
	}
	defer closer.Close()

	head := make([]byte, len(czi.Magic))
	n, err := ra.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return nil, &DocumentLoadError{Source: source, Err: err}
	}
	head = head[:n]

	var body io.Reader
	container := bytes.Equal(head, czi.Magic)
	if container {
		f, err := czi.OpenReader(ra, size)
		if err != nil {
			return nil, &DocumentLoadError{Source: source, Err: err}
		}
		raw, err := f.MetadataXML()
		if err != nil {
			return nil, &DocumentLoadError{Source: source, Err: err}
		}
		l.log.Debug("read container metadata segment", "source", source, "bytes", len(raw))
		body = bytes.NewReader(raw)
	} else {
		rc, err := decompress(bufio.NewReader(io.NewSectionReader(ra, 0, size)), head)
		if err != nil {
			return nil, &DocumentLoadError{Source: source, Err: err}
		}
		defer rc.Close()
		body = rc
	}

	doc, err := NewDocument(body, source)
	if err != nil {
		return nil, &DocumentLoadError{Source: source, Err: err}
	}
	doc.Container = container
	return doc, nil
}

// OpenContainer opens the CZI container behind source.
// The caller must close the returned file.
func (l *Loader) OpenContainer(ctx context.Context, source string) (*czi.File, error) {
	if source == "" {
		return nil, fmt.Errorf("czimd: document has no source to open")
	}
	ra, size, closer, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}
	f, err := czi.OpenReader(ra, size)
	if err != nil {
		closer.Close()
		return nil, err
	}
	f.SetCloser(closer)
	return f, nil
}

func (l *Loader) open(ctx context.Context, source string) (io.ReaderAt, int64, io.Closer, error) {
	if strings.HasPrefix(source, "s3://") {
		if l.s3 == nil {
			return nil, 0, nil, fmt.Errorf("no S3 client configured for %s", source)
		}
		obj, err := openS3Object(ctx, l.s3, source)
		if err != nil {
			return nil, 0, nil, err
		}
		return obj, obj.size, nopCloser{}, nil
	}

	fh, err := os.Open(source)
	if err != nil {
		return nil, 0, nil, err
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, 0, nil, err
	}
	return fh, info.Size(), fh, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// decompress wraps r in a decompressor when head carries a gzip or zstd magic.
func decompress(r io.Reader, head []byte) (io.ReadCloser, error) {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(r), nil
	}
}
