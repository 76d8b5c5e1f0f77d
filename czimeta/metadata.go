// Package czimeta normalizes the metadata document of a CZI image into typed
// values: channel identity and display parameters, the well and scene
// layout, the microscope and the free-form additional blocks.
//
// Every extractor applies the same default table (see DefaultValue) to
// absent or malformed fields, so a partially populated document still
// yields complete results. Which fields were substituted is reported in the
// Defaulted list of each result.
//
// Extractors can start from a source identifier, which loads the document:
//
//	ch, err := czimeta.ReadChannelInfo(ctx, "plate.czi")
//
// or from an already loaded document shared between extractors:
//
//	doc, err := czimd.Load(ctx, "plate.czi")
//	ch, err := czimeta.NewChannelInfo(ctx, doc)
//	sample := czimeta.NewSampleInfo(ctx, doc)
//
// Documents are never modified, so extractors may run concurrently over the
// same document.
package czimeta

import (
	"context"

	"github.com/sebi06/czimetadata-tools/czimd"
)

// Metadata bundles the results of all extractors for one document.
type Metadata struct {
	Source     string
	Channels   *ChannelInfo
	Sample     *SampleInfo
	Microscope *Microscope
	Additional *AdditionalInfo
}

// ReadMetadata loads the document of source once and runs every extractor
// over it.
func ReadMetadata(ctx context.Context, source string, opts ...Option) (*Metadata, error) {
	o := newOptions(opts)
	doc, err := o.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return newMetadata(ctx, doc, o)
}

// NewMetadata runs every extractor over a loaded document.
func NewMetadata(ctx context.Context, doc *czimd.Document, opts ...Option) (*Metadata, error) {
	return newMetadata(ctx, doc, newOptions(opts))
}

func newMetadata(ctx context.Context, doc *czimd.Document, o *options) (*Metadata, error) {
	channels, err := newChannelInfo(ctx, doc, o)
	if err != nil {
		return nil, err
	}
	md := &Metadata{
		Channels:   channels,
		Sample:     newSampleInfo(ctx, doc, o),
		Microscope: newMicroscope(doc, o),
		Additional: newAdditionalInfo(doc, o),
	}
	if doc != nil {
		md.Source = doc.Source
	}
	return md, nil
}
