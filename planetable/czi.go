package planetable

import (
	"fmt"
	"time"

	"github.com/sebi06/czimetadata-tools/czi"
)

// FromCZI builds the plane table of a container from the metadata of its
// full-resolution subblocks. Pyramid subblocks are skipped. Missing stage or
// focus tags read as 0; Time is relative to the earliest acquisition time.
func FromCZI(f *czi.File) (Table, error) {
	var (
		tbl   Table
		times []*time.Time
		first *time.Time
	)
	for i, e := range f.Directory() {
		if !e.IsLayer0() {
			continue
		}
		sb, err := f.SubBlock(i)
		if err != nil {
			return nil, fmt.Errorf("planetable: subblock %d: %w", i, err)
		}
		md, err := sb.Metadata()
		if err != nil {
			return nil, fmt.Errorf("planetable: subblock %d: %w", i, err)
		}

		rec := Record{
			Subblock: i,
			S:        e.Start("S"),
			M:        e.Start("M"),
			T:        e.Start("T"),
			C:        e.Start("C"),
			Z:        e.Start("Z"),
			X:        deref(md.StageX),
			Y:        deref(md.StageY),
			ZPos:     deref(md.FocusPosition),
			XStart:   e.Start("X"),
			YStart:   e.Start("Y"),
		}
		if d := e.Dimension("X"); d != nil {
			rec.Width = int(d.Size)
		}
		if d := e.Dimension("Y"); d != nil {
			rec.Height = int(d.Size)
		}
		tbl = append(tbl, rec)

		times = append(times, md.AcquisitionTime)
		if md.AcquisitionTime != nil && (first == nil || md.AcquisitionTime.Before(*first)) {
			first = md.AcquisitionTime
		}
	}

	if first != nil {
		for i, ts := range times {
			if ts != nil {
				tbl[i].Time = ts.Sub(*first).Seconds()
			}
		}
	}
	return tbl, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
