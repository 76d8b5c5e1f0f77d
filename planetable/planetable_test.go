package planetable

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sebi06/czimetadata-tools/czi"
	"github.com/sebi06/czimetadata-tools/internal/czitest"
)

var sampleTable = Table{
	{Subblock: 0, C: 1, X: 10, Y: 20, Width: 4, Height: 4},
	{Subblock: 1, C: 0, X: 30.5, Y: 40.25, ZPos: 1.5, Time: 0.5, Width: 4, Height: 4},
	{Subblock: 2, C: 0, X: 50, Y: 60, Time: 1, XStart: 4, Width: 4, Height: 4},
	{Subblock: 3, C: 0, T: 1, X: 70, Y: 80, Time: 2, Width: 4, Height: 4},
}

func TestTableFirstRecord(t *testing.T) {
	ctx := context.Background()

	r, err := sampleTable.FirstRecord(ctx, 0, 0, 0)
	if err != nil {
		t.Fatalf("FirstRecord() error = %v", err)
	}
	if r.Subblock != 1 || r.X != 30.5 || r.Y != 40.25 {
		t.Errorf("FirstRecord(0,0,0) = %+v, want subblock 1 at (30.5, 40.25)", r)
	}

	_, err = sampleTable.FirstRecord(ctx, 0, 0, 7)
	var nf *RecordNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("FirstRecord(0,0,7) error = %v, want *RecordNotFoundError", err)
	}
	if nf.ZPlane != 7 {
		t.Errorf("RecordNotFoundError.ZPlane = %d, want 7", nf.ZPlane)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := sampleTable.FirstRecord(cancelled, 0, 0, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("FirstRecord(cancelled) error = %v, want context.Canceled", err)
	}

}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleTable); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	header, _, _ := strings.Cut(buf.String(), "\n")
	if want := strings.Join(Columns, ";"); header != want {
		t.Errorf("header = %q, want %q", header, want)
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if !reflect.DeepEqual(got, sampleTable) {
		t.Errorf("ReadCSV() = %+v, want %+v", got, sampleTable)
	}
}

func TestReadCSVPandasLayout(t *testing.T) {
	in := ";Subblock;S;M;T;C;Z;X[micron];Y[micron];Z[micron];Time[s];xstart;ystart;width;height\n" +
		"0;0;0;0;0;0;0;16977.153;18621.489;0.0;0.0;0;0;1024;1024\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(tbl) != 1 || tbl[0].X != 16977.153 || tbl[0].Width != 1024 {
		t.Errorf("ReadCSV() = %+v", tbl)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"missing column", "Subblock;S\n0;0\n", ErrMissingColumn},
		{"bad number", strings.Join(Columns, ";") + "\n0;0;0;0;0;0;x;0;0;0;0;0;0;0\n", nil},
	}
	for _, tt := range tests {
		_, err := ReadCSV(strings.NewReader(tt.in))
		if err == nil {
			t.Errorf("%s: ReadCSV() error = nil", tt.name)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: ReadCSV() error = %v, want %v", tt.name, err, tt.want)
		}
	}

	tbl, err := ReadCSV(strings.NewReader(""))
	if err != nil || tbl != nil {
		t.Errorf("ReadCSV(empty) = %v, %v, want nil, nil", tbl, err)
	}
}

func TestFromCZI(t *testing.T) {
	layout := czitest.Layout{SubBlocks: []czitest.SubBlock{
		{C: 0, Width: 8, Height: 8, Metadata: czitest.Tags(100, 200, "2024-05-01T10:00:00Z")},
		{C: 1, Width: 8, Height: 8, Metadata: czitest.Tags(100, 200, "2024-05-01T10:00:01.5Z")},
		{C: 0, T: 1, X: 8, Width: 8, Height: 8, Metadata: czitest.Tags(300, 400, "2024-05-01T10:00:03Z")},
		// Pyramid level, skipped.
		{C: 0, Width: 8, Height: 8, StoredWidth: 4, StoredHeight: 4},
		{C: 1, T: 1, Width: 8, Height: 8},
	}}
	data := czitest.Build(layout)
	f, err := czi.OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}

	tbl, err := FromCZI(f)
	if err != nil {
		t.Fatalf("FromCZI() error = %v", err)
	}
	if len(tbl) != 4 {
		t.Fatalf("len(FromCZI()) = %d, want 4", len(tbl))
	}

	want := []struct {
		subblock, c, t, xstart int
		x, y, time             float64
	}{
		{0, 0, 0, 0, 100, 200, 0},
		{1, 1, 0, 0, 100, 200, 1.5},
		{2, 0, 1, 8, 300, 400, 3},
		{4, 1, 1, 0, 0, 0, 0},
	}
	for i, w := range want {
		r := tbl[i]
		if r.Subblock != w.subblock || r.C != w.c || r.T != w.t || r.XStart != w.xstart {
			t.Errorf("record %d indices = %+v, want %+v", i, r, w)
		}
		if r.X != w.x || r.Y != w.y || r.Time != w.time {
			t.Errorf("record %d = (%v, %v, %v), want (%v, %v, %v)", i, r.X, r.Y, r.Time, w.x, w.y, w.time)
		}
		if r.Width != 8 || r.Height != 8 {
			t.Errorf("record %d size = %dx%d, want 8x8", i, r.Width, r.Height)
		}
	}
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "planes", "tables.db")

	store, err := OpenSQLite(path, "plate1.czi")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer store.Close()

	if _, err := store.FirstRecord(ctx, 0, 0, 0); !isNotFound(err) {
		t.Errorf("FirstRecord() on empty store error = %v, want *RecordNotFoundError", err)
	}

	if err := store.Save(ctx, sampleTable); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Saving again replaces rather than duplicates.
	if err := store.Save(ctx, sampleTable); err != nil {
		t.Fatalf("Save() again error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, sampleTable) {
		t.Errorf("Load() = %+v, want %+v", got, sampleTable)
	}

	r, err := store.FirstRecord(ctx, 0, 0, 0)
	if err != nil {
		t.Fatalf("FirstRecord() error = %v", err)
	}
	if r.Subblock != 1 || r.X != 30.5 {
		t.Errorf("FirstRecord() = %+v, want subblock 1", r)
	}

	other := store.Bind("plate2.czi")
	if _, err := other.FirstRecord(ctx, 0, 0, 0); !isNotFound(err) {
		t.Errorf("FirstRecord() for other source error = %v, want *RecordNotFoundError", err)
	}
	if err := other.Save(ctx, sampleTable[3:]); err != nil {
		t.Fatalf("Save() other error = %v", err)
	}
	if got, _ := store.Load(ctx); len(got) != len(sampleTable) {
		t.Errorf("Load() after saving other source = %d records, want %d", len(got), len(sampleTable))
	}
}

func TestSQLStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tables.db")

	store, err := OpenSQLite(path, "a.czi")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, sampleTable); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := OpenSQLite(path, "a.czi")
	if err != nil {
		t.Fatalf("OpenSQLite() again error = %v", err)
	}
	defer reopened.Close()
	r, err := reopened.FirstRecord(ctx, 0, 1, 0)
	if err != nil {
		t.Fatalf("FirstRecord() error = %v", err)
	}
	if r.Subblock != 3 {
		t.Errorf("FirstRecord(0,1,0).Subblock = %d, want 3", r.Subblock)
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	store, err := OpenSQLite(":memory:", "mem")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer store.Close()
	if err := store.Save(context.Background(), sampleTable[:1]); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := OpenSQLite("", "x"); err == nil {
		t.Error("OpenSQLite(\"\") should fail")
	}
}

func isNotFound(err error) bool {
	var nf *RecordNotFoundError
	return errors.As(err, &nf)
}
