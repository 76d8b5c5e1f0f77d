package czimeta

import (
	"context"

	"github.com/sebi06/czimetadata-tools/czimd"
)

// Microscope identifies the instrument an image was acquired with.
// Fields are empty when the document does not carry them.
type Microscope struct {
	ID     string
	Name   string
	System string
}

// ReadMicroscope loads the document of source and extracts the microscope.
func ReadMicroscope(ctx context.Context, source string, opts ...Option) (*Microscope, error) {
	o := newOptions(opts)
	doc, err := o.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return newMicroscope(doc, o), nil
}

// NewMicroscope extracts the first microscope listed under
// Information/Instrument/Microscopes.
func NewMicroscope(doc *czimd.Document, opts ...Option) *Microscope {
	return newMicroscope(doc, newOptions(opts))
}

func newMicroscope(doc *czimd.Document, o *options) *Microscope {
	m := &Microscope{}
	if !doc.HasInstrument() {
		o.log.Info("instrument information not found")
		return m
	}
	scopes := doc.Instrument().Path("Microscopes").All("Microscope")
	if len(scopes) == 0 {
		o.log.Info("microscope information not found")
		return m
	}
	scope := scopes[0]
	m.ID, _ = scope.Field("Id")
	m.Name, _ = scope.Field("Name")
	m.System, _ = scope.Field("System")
	return m
}
