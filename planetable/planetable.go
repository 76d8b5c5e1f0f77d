// Package planetable provides per-subblock positional records of a CZI
// acquisition: where each plane was acquired on the stage, when, and which
// scene, channel, timepoint and z-plane it belongs to.
//
// A plane table can be extracted from a container's subblocks, exchanged as
// ';'-separated CSV, or stored in SQLite. All three implement Source.
package planetable

import (
	"context"
	"fmt"
)

// Record is one row of a plane table.
type Record struct {
	Subblock int
	S, M     int
	T, C, Z  int
	X, Y     float64 // stage position in microns
	ZPos     float64 // focus position in microns
	Time     float64 // seconds since the first acquired subblock
	XStart   int
	YStart   int
	Width    int
	Height   int
}

// Source looks up positional records.
type Source interface {
	// FirstRecord returns the first record acquired at channel c,
	// timepoint t and z-plane z. It returns *RecordNotFoundError when no
	// record matches.
	FirstRecord(ctx context.Context, c, t, z int) (Record, error)
}

// RecordNotFoundError reports that no record matched a lookup.
type RecordNotFoundError struct {
	Channel   int
	Timepoint int
	ZPlane    int
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("planetable: no record for C=%d T=%d Z=%d", e.Channel, e.Timepoint, e.ZPlane)
}

// Table is an in-memory plane table in subblock order.
type Table []Record

// FirstRecord implements Source.
func (tbl Table) FirstRecord(ctx context.Context, c, t, z int) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	for _, r := range tbl {
		if r.C == c && r.T == t && r.Z == z {
			return r, nil
		}
	}
	return Record{}, &RecordNotFoundError{Channel: c, Timepoint: t, ZPlane: z}
}

