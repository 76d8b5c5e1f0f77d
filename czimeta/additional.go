package czimeta

import (
	"context"

	"github.com/sebi06/czimetadata-tools/czimd"
)

// AdditionalInfo exposes free-form metadata blocks unchanged. Each field is
// nil when the document lacks the block. The nodes are shared with the
// document and must not be modified.
type AdditionalInfo struct {
	Experiment       *czimd.Node
	HardwareSetting  *czimd.Node
	CustomAttributes *czimd.Node
	DisplaySetting   *czimd.Node
	Layers           *czimd.Node
}

// ReadAdditionalInfo loads the document of source and extracts its
// additional blocks.
func ReadAdditionalInfo(ctx context.Context, source string, opts ...Option) (*AdditionalInfo, error) {
	o := newOptions(opts)
	doc, err := o.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return newAdditionalInfo(doc, o), nil
}

// NewAdditionalInfo extracts the additional blocks of a loaded document.
func NewAdditionalInfo(doc *czimd.Document, opts ...Option) *AdditionalInfo {
	return newAdditionalInfo(doc, newOptions(opts))
}

func newAdditionalInfo(doc *czimd.Document, o *options) *AdditionalInfo {
	info := &AdditionalInfo{}
	blocks := []struct {
		name    string
		present bool
		node    *czimd.Node
		dst     **czimd.Node
	}{
		{"Experiment", doc.HasExperiment(), doc.Experiment(), &info.Experiment},
		{"HardwareSetting", doc.HasHardware(), doc.HardwareSetting(), &info.HardwareSetting},
		{"CustomAttributes", doc.HasCustomAttributes(), doc.CustomAttributes(), &info.CustomAttributes},
		{"DisplaySetting", doc.HasDisplaySettings(), doc.DisplaySetting(), &info.DisplaySetting},
		{"Layers", doc.HasLayers(), doc.Layers(), &info.Layers},
	}
	for _, b := range blocks {
		if !b.present {
			o.log.Info("metadata block not found", "block", b.name)
			continue
		}
		*b.dst = b.node
	}
	return info
}
