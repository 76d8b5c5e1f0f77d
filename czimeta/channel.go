package czimeta

import (
	"context"
	"fmt"

	"github.com/sebi06/czimetadata-tools/czi"
	"github.com/sebi06/czimetadata-tools/czimd"
)

// TintingMode selects how a channel is rendered.
type TintingMode int

const (
	// TintingNone renders the channel's stored RGB values directly.
	TintingNone TintingMode = iota
	// TintingColor renders a grayscale channel through its tint color.
	TintingColor
)

func (m TintingMode) String() string {
	switch m {
	case TintingNone:
		return "None"
	case TintingColor:
		return "Color"
	default:
		return fmt.Sprintf("TintingMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m TintingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// RenderSettings are the rendering parameters derived for one display entry.
type RenderSettings struct {
	TintingMode TintingMode
	BlackPoint  float64
	WhitePoint  float64
	TintColor   RGB
}

// IntensityLimits is the stored display range of a channel.
type IntensityLimits struct {
	Low  float64
	High float64
}

// ChannelInfo is the normalized channel metadata of a document.
//
// Names has one entry per channel entry of the dimension metadata. Dyes,
// Colors, Limits, Gamma and RenderSettings have one entry per display
// entry; the two counts agree for well-formed documents but are not forced
// to. RenderSettings is nil when the document has no display settings.
type ChannelInfo struct {
	Names  []string
	Dyes   []string
	Colors []string
	Limits []IntensityLimits
	Gamma  []float64

	// PixelTypes and IsRGB are keyed by channel index. Both are empty when
	// the container could not be classified.
	PixelTypes           map[int]string
	IsRGB                map[int]bool
	ConsistentPixelTypes bool

	RenderSettings []RenderSettings

	// Defaulted lists every field that was substituted. Index refers to the
	// channel entry for FieldChannelName and to the display entry otherwise.
	Defaulted []Substitution
}

// ReadChannelInfo loads the document of source and extracts its channel
// metadata.
func ReadChannelInfo(ctx context.Context, source string, opts ...Option) (*ChannelInfo, error) {
	o := newOptions(opts)
	doc, err := o.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return newChannelInfo(ctx, doc, o)
}

// NewChannelInfo extracts the channel metadata of a loaded document.
//
// Absent and malformed fields are replaced by their defaults. Pixel types
// are read from the document's container; if it cannot be opened the
// channels are treated as not RGB. The only error returned is a color that
// survives substitution but cannot be decoded, wrapping ErrInvalidColor.
func NewChannelInfo(ctx context.Context, doc *czimd.Document, opts ...Option) (*ChannelInfo, error) {
	return newChannelInfo(ctx, doc, newOptions(opts))
}

func newChannelInfo(ctx context.Context, doc *czimd.Document, o *options) (*ChannelInfo, error) {
	res := o.resolver()
	info := &ChannelInfo{
		PixelTypes: map[int]string{},
		IsRGB:      map[int]bool{},
	}

	if doc.HasChannels() {
		for i, ch := range doc.Channels() {
			info.Names = append(info.Names, res.str(ch, "Name", i, FieldChannelName))
		}
	} else {
		o.log.Info("channel information not found")
	}

	classifyPixelTypes(ctx, doc, o, info)

	if doc.HasDisplaySettings() {
		entries := doc.DisplayChannels()
		info.RenderSettings = make([]RenderSettings, 0, len(entries))
		for i, disp := range entries {
			if err := info.addDisplay(res, i, disp); err != nil {
				return nil, err
			}
		}
	} else {
		o.log.Info("display settings not found")
	}

	info.Defaulted = res.subs
	return info, nil
}

// addDisplay appends one display entry and its render settings.
func (info *ChannelInfo) addDisplay(res *resolver, i int, disp *czimd.Node) error {
	if disp.IsLeaf() {
		res.log.Info("display entry is empty, using default record", "index", i)
	}

	dye := res.str(disp, "ShortName", i, FieldDyeLabel)
	color := res.str(disp, "Color", i, FieldColor)
	limits := IntensityLimits{
		Low:  res.float(disp, "Low", i, FieldLow),
		High: res.float(disp, "High", i, FieldHigh),
	}
	gamma := res.float(disp, "Gamma", i, FieldGamma)

	tint, err := DecodeColor(color)
	if err != nil {
		return fmt.Errorf("czimeta: display entry %d: %w", i, err)
	}

	info.Dyes = append(info.Dyes, dye)
	info.Colors = append(info.Colors, color)
	info.Limits = append(info.Limits, limits)
	info.Gamma = append(info.Gamma, gamma)

	rs := RenderSettings{
		TintingMode: TintingColor,
		BlackPoint:  limits.Low,
		WhitePoint:  limits.High,
		TintColor:   tint,
	}
	if info.IsRGB[i] {
		rs.TintingMode = TintingNone
		rs.BlackPoint = 0
		rs.WhitePoint = 1
	}
	info.RenderSettings = append(info.RenderSettings, rs)
	return nil
}

// classifyPixelTypes fills PixelTypes, IsRGB and ConsistentPixelTypes from
// the container. Failures are logged and leave the maps empty.
func classifyPixelTypes(ctx context.Context, doc *czimd.Document, o *options, info *ChannelInfo) {
	if doc == nil || doc.Source == "" {
		o.log.Debug("document has no source, pixel types unknown")
		return
	}
	if !doc.Container && o.defaultOpener {
		o.log.Info("source is not a CZI container, pixel types unknown", "source", doc.Source)
		return
	}
	c, err := o.opener(ctx, doc.Source)
	if err != nil {
		o.log.Error("open container for pixel types", "source", doc.Source, "error", err)
		return
	}
	defer func() {
		if err := c.Close(); err != nil {
			o.log.Error("close container", "source", doc.Source, "error", err)
		}
	}()

	types := c.PixelTypes()
	seen := make(map[czi.PixelType]bool, len(types))
	for ch, pt := range types {
		info.PixelTypes[ch] = pt.String()
		info.IsRGB[ch] = pt.IsRGB()
		seen[pt] = true
	}
	info.ConsistentPixelTypes = len(seen) == 1
}
