package czimeta

import (
	"context"
	"log/slog"

	"github.com/sebi06/czimetadata-tools/czi"
	"github.com/sebi06/czimetadata-tools/czimd"
	"github.com/sebi06/czimetadata-tools/planetable"
)

// Container is an open image container that can classify its channels.
// *czi.File implements it.
type Container interface {
	PixelTypes() map[int]czi.PixelType
	Close() error
}

// ContainerOpener opens the container behind a document source.
type ContainerOpener func(ctx context.Context, source string) (Container, error)

// Option configures an extractor.
type Option func(*options)

type options struct {
	log     *slog.Logger
	metrics *Metrics
	loader  *czimd.Loader
	opener  ContainerOpener
	records planetable.Source

	// defaultOpener is set when opener reads the loader's CZI containers,
	// which only exist for documents loaded from one.
	defaultOpener bool
}

// WithLogger sets the logger. The default discards all records.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics records default substitutions and fallback lookups in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLoader sets the loader used to read sources and open containers.
// The default loader reads local files only.
func WithLoader(l *czimd.Loader) Option {
	return func(o *options) {
		if l != nil {
			o.loader = l
		}
	}
}

// WithContainerOpener overrides how the container is opened for pixel-type
// classification.
func WithContainerOpener(open ContainerOpener) Option {
	return func(o *options) {
		o.opener = open
	}
}

// WithRecordSource sets the positional-record source used for the stage
// position fallback. By default the plane table is read from the
// document's container.
func WithRecordSource(src planetable.Source) Option {
	return func(o *options) {
		o.records = src
	}
}

func newOptions(opts []Option) *options {
	o := &options{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(o)
	}
	if o.loader == nil {
		o.loader = czimd.NewLoader(czimd.WithLoaderLogger(o.log))
	}
	if o.opener == nil {
		o.defaultOpener = true
		loader := o.loader
		o.opener = func(ctx context.Context, source string) (Container, error) {
			f, err := loader.OpenContainer(ctx, source)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
	}
	return o
}

func (o *options) resolver() *resolver {
	return &resolver{log: o.log, metrics: o.metrics}
}
