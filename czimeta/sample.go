package czimeta

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sebi06/czimetadata-tools/czimd"
	"github.com/sebi06/czimetadata-tools/planetable"
)

// SampleInfo is the normalized well and scene layout of a document.
//
// Indices, PositionNames, ColumnIDs, RowIDs, StageX and StageY have one
// entry per scene, in document order. ArrayNames only holds the scenes that
// name their well array.
type SampleInfo struct {
	ArrayNames  []string
	WellCounter map[string]int

	Indices       []int
	PositionNames []string
	ColumnIDs     []int
	RowIDs        []int
	StageX        []float64
	StageY        []float64

	// Fallback is the stage position of the first plane, set only when the
	// document declares no scenes and the lookup succeeded.
	Fallback *StagePosition

	Defaulted []Substitution
}

// ReadSampleInfo loads the document of source and extracts its sample
// layout.
func ReadSampleInfo(ctx context.Context, source string, opts ...Option) (*SampleInfo, error) {
	o := newOptions(opts)
	doc, err := o.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return newSampleInfo(ctx, doc, o), nil
}

// NewSampleInfo extracts the sample layout of a loaded document. It never
// fails: absent fields take their defaults and a failing fallback lookup
// leaves Fallback nil.
func NewSampleInfo(ctx context.Context, doc *czimd.Document, opts ...Option) *SampleInfo {
	return newSampleInfo(ctx, doc, newOptions(opts))
}

func newSampleInfo(ctx context.Context, doc *czimd.Document, o *options) *SampleInfo {
	res := o.resolver()
	info := &SampleInfo{WellCounter: map[string]int{}}

	if n, ok := doc.SizeS(); ok && n > 0 {
		scenes := doc.Scenes()
		if len(scenes) == 0 {
			o.log.Info("document declares scenes but has no scene metadata", "sizeS", n)
		}
		for i, scene := range scenes {
			info.addWell(res, i, scene)
		}
	} else {
		o.log.Info("no scene information found, reading stage position from plane records")
		info.Fallback = fallbackPosition(ctx, doc, o)
	}

	info.Defaulted = res.subs
	return info
}

func (info *SampleInfo) addWell(res *resolver, i int, scene *czimd.Node) {
	if name, ok := scene.Field("ArrayName"); ok {
		info.ArrayNames = append(info.ArrayNames, name)
		info.WellCounter = countNames(info.ArrayNames)
	}

	info.Indices = append(info.Indices, res.int(scene, "Index", i, FieldSceneIndex))
	info.PositionNames = append(info.PositionNames, res.str(scene, "Name", i, FieldSceneName))

	grid, ok := parseShape(scene.Child("Shape"))
	if !ok {
		res.substitute(i, FieldSceneShape, presence(scene, "Shape"))
		grid = defaults[FieldSceneShape].(GridPosition)
	}
	info.ColumnIDs = append(info.ColumnIDs, grid.Column)
	info.RowIDs = append(info.RowIDs, grid.Row)

	center, ok := parseCenter(scene.Field("CenterPosition"))
	if !ok {
		res.substitute(i, FieldSceneCenter, presence(scene, "CenterPosition"))
		center = defaults[FieldSceneCenter].(StagePosition)
	}
	info.StageX = append(info.StageX, center.X)
	info.StageY = append(info.StageY, center.Y)
}

func presence(n *czimd.Node, name string) string {
	if n.Has(name) {
		return "malformed"
	}
	return "absent"
}

// countNames returns the number of occurrences of each name.
func countNames(names []string) map[string]int {
	counts := make(map[string]int, len(names))
	for _, n := range names {
		counts[n]++
	}
	return counts
}

// parseShape reads both grid indices of a Shape element. A missing or
// malformed index invalidates both.
func parseShape(shape *czimd.Node) (GridPosition, bool) {
	col, okCol := shape.IntField("ColumnIndex")
	row, okRow := shape.IntField("RowIndex")
	if !okCol || !okRow {
		return GridPosition{}, false
	}
	return GridPosition{Column: col, Row: row}, true
}

// parseCenter parses "x,y". Fields after the second are ignored.
func parseCenter(s string, present bool) (StagePosition, bool) {
	if !present {
		return StagePosition{}, false
	}
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return StagePosition{}, false
	}
	x, okX := czimd.ParseFinite(parts[0])
	y, okY := czimd.ParseFinite(parts[1])
	if !okX || !okY {
		return StagePosition{}, false
	}
	return StagePosition{X: x, Y: y}, true
}

// fallbackPosition performs the single lookup of the first plane at
// C=0, T=0, Z=0. All failures are logged and yield nil.
func fallbackPosition(ctx context.Context, doc *czimd.Document, o *options) *StagePosition {
	src := o.records
	if src == nil {
		if doc == nil || doc.Source == "" {
			o.log.Error("no positional record source for stage position fallback")
			o.metrics.fallbackLookup(OutcomeUnavailable)
			return nil
		}
		if !doc.Container {
			o.log.Info("source is not a CZI container, no stage position fallback", "source", doc.Source)
			o.metrics.fallbackLookup(OutcomeUnavailable)
			return nil
		}
		src = &containerRecords{loader: o.loader, source: doc.Source}
	}

	rec, err := src.FirstRecord(ctx, 0, 0, 0)
	if err != nil {
		var nf *planetable.RecordNotFoundError
		if errors.As(err, &nf) {
			o.metrics.fallbackLookup(OutcomeNotFound)
		} else {
			o.metrics.fallbackLookup(OutcomeError)
		}
		o.log.Error("stage position fallback failed", "error", err)
		return nil
	}
	o.metrics.fallbackLookup(OutcomeFound)
	return &StagePosition{X: rec.X, Y: rec.Y}
}

// containerRecords looks records up in the plane table of a container.
type containerRecords struct {
	loader *czimd.Loader
	source string
}

func (c *containerRecords) FirstRecord(ctx context.Context, ch, t, z int) (planetable.Record, error) {
	f, err := c.loader.OpenContainer(ctx, c.source)
	if err != nil {
		return planetable.Record{}, fmt.Errorf("open container: %w", err)
	}
	defer f.Close()

	tbl, err := planetable.FromCZI(f)
	if err != nil {
		return planetable.Record{}, err
	}
	return tbl.FirstRecord(ctx, ch, t, z)
}
