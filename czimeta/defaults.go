package czimeta

import (
	"log/slog"

	"github.com/sebi06/czimetadata-tools/czimd"
)

// Field names a defaulted metadata field.
type Field string

// Defaulted fields.
const (
	FieldChannelName Field = "Channel.Name"
	FieldDyeLabel    Field = "DisplaySetting.ShortName"
	FieldColor       Field = "DisplaySetting.Color"
	FieldLow         Field = "DisplaySetting.Low"
	FieldHigh        Field = "DisplaySetting.High"
	FieldGamma       Field = "DisplaySetting.Gamma"
	FieldSceneIndex  Field = "Scene.Index"
	FieldSceneName   Field = "Scene.Name"
	FieldSceneShape  Field = "Scene.Shape"
	FieldSceneCenter Field = "Scene.CenterPosition"
)

// GridPosition is a well's column and row on the sample carrier.
type GridPosition struct {
	Column int
	Row    int
}

// StagePosition is a stage coordinate pair in microns.
type StagePosition struct {
	X float64
	Y float64
}

// defaults is the substitution table consulted by every extractor.
// Adding a defaulted field is one entry here plus one resolver call.
var defaults = map[Field]any{
	FieldChannelName: "CH1",
	FieldDyeLabel:    "Dye-CH1",
	FieldColor:       "#80808000",
	FieldLow:         0.0,
	FieldHigh:        0.5,
	FieldGamma:       0.85,
	FieldSceneIndex:  1,
	FieldSceneName:   "P1",
	FieldSceneShape:  GridPosition{Column: 0, Row: 0},
	FieldSceneCenter: StagePosition{X: 0, Y: 0},
}

// DefaultValue returns the value substituted for f when it is absent or
// malformed, and false for fields without a default.
func DefaultValue(f Field) (any, bool) {
	v, ok := defaults[f]
	return v, ok
}

// Substitution records that a default was used. Index is the position of the
// entry (channel, display entry or well) in document order.
type Substitution struct {
	Index int
	Field Field
}

// resolver reads fields of one extraction pass, falling back to the default
// table and recording each substitution.
type resolver struct {
	log     *slog.Logger
	metrics *Metrics
	subs    []Substitution
}

func (r *resolver) substitute(index int, f Field, reason string) {
	r.log.Info("using default", "field", string(f), "index", index, "reason", reason)
	r.metrics.defaultSubstituted(f)
	r.subs = append(r.subs, Substitution{Index: index, Field: f})
}

func (r *resolver) str(n *czimd.Node, key string, index int, f Field) string {
	if v, ok := n.Field(key); ok {
		return v
	}
	r.substitute(index, f, "absent")
	return defaults[f].(string)
}

func (r *resolver) float(n *czimd.Node, key string, index int, f Field) float64 {
	s, ok := n.Field(key)
	if !ok {
		r.substitute(index, f, "absent")
		return defaults[f].(float64)
	}
	v, ok := n.FloatField(key)
	if !ok {
		r.log.Warn("malformed value", "field", string(f), "index", index, "value", s)
		r.substitute(index, f, "malformed")
		return defaults[f].(float64)
	}
	return v
}

func (r *resolver) int(n *czimd.Node, key string, index int, f Field) int {
	s, ok := n.Field(key)
	if !ok {
		r.substitute(index, f, "absent")
		return defaults[f].(int)
	}
	v, ok := n.IntField(key)
	if !ok {
		r.log.Warn("malformed value", "field", string(f), "index", index, "value", s)
		r.substitute(index, f, "malformed")
		return defaults[f].(int)
	}
	return v
}
