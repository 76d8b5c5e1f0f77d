// Package czitest builds small in-memory CZI containers for tests.
//
// The containers are structurally valid ZISRAW files: a file header, an
// optional metadata segment, subblock segments carrying metadata XML and a
// subblock directory. Pixel payloads are a few placeholder bytes.
package czitest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebi06/czimetadata-tools/internal/xdr"
)

// SubBlock describes one subblock to write.
type SubBlock struct {
	PixelType int32 // czi.PixelType value
	C, T, Z   int
	S, M      int
	X, Y      int
	Width     int
	Height    int
	// StoredWidth/StoredHeight differ from Width/Height for pyramid levels.
	// Zero means equal to Width/Height.
	StoredWidth  int
	StoredHeight int
	// Metadata is the raw subblock metadata XML. See Tags.
	Metadata string
}

// Layout describes a container.
type Layout struct {
	// MetadataXML is the document stored in the metadata segment.
	// Empty means no metadata segment.
	MetadataXML string
	SubBlocks   []SubBlock
}

// Tags returns subblock metadata XML carrying stage positions and an acquisition time.
func Tags(stageX, stageY float64, acquired string) string {
	return fmt.Sprintf("<METADATA><Tags><StageXPosition>%g</StageXPosition>"+
		"<StageYPosition>%g</StageYPosition><FocusPosition>0</FocusPosition>"+
		"<AcquisitionTime>%s</AcquisitionTime></Tags></METADATA>", stageX, stageY, acquired)
}

const (
	fileHeaderAlloc = 512
	dirPosOffset    = 32 + 52
	metaPosOffset   = 32 + 60
)

// Build encodes layout as CZI file bytes.
func Build(layout Layout) []byte {
	w := xdr.NewBufferWriter(4096)

	fh := xdr.NewBufferWriter(fileHeaderAlloc)
	fh.WriteInt32(1) // major
	fh.WriteInt32(0) // minor
	fh.WriteZeros(8)
	fh.WriteBytes([]byte("0123456789abcdef"))
	fh.WriteBytes([]byte("0123456789abcdef"))
	fh.WriteInt32(0) // file part
	fh.WriteInt64(0) // directory position, patched below
	fh.WriteInt64(0) // metadata position, patched below
	fh.WriteInt32(0) // update pending
	fh.WriteInt64(0) // attachment directory position
	writeSegment(w, "ZISRAWFILE", fh.Bytes(), fileHeaderAlloc)

	if layout.MetadataXML != "" {
		md := xdr.NewBufferWriter(256 + len(layout.MetadataXML))
		md.WriteInt32(int32(len(layout.MetadataXML)))
		md.WriteInt32(0)
		md.WriteZeros(248)
		md.WriteBytes([]byte(layout.MetadataXML))
		pos := writeSegment(w, "ZISRAWMETADATA", md.Bytes(), 0)
		w.PutInt64At(metaPosOffset, pos)
	}

	positions := make([]int64, len(layout.SubBlocks))
	for i, sb := range layout.SubBlocks {
		positions[i] = int64(w.Len())
		data := xdr.NewBufferWriter(512)
		data.WriteInt32(int32(len(sb.Metadata)))
		data.WriteInt32(0)
		data.WriteInt64(4)
		writeEntry(data, sb, positions[i])
		data.WriteZeros(256 - data.Len())
		data.WriteBytes([]byte(sb.Metadata))
		data.WriteBytes([]byte{0, 0, 0, 0})
		writeSegment(w, "ZISRAWSUBBLOCK", data.Bytes(), 0)
	}

	if len(layout.SubBlocks) > 0 {
		dir := xdr.NewBufferWriter(128 + 172*len(layout.SubBlocks))
		dir.WriteInt32(int32(len(layout.SubBlocks)))
		dir.WriteZeros(124)
		for i, sb := range layout.SubBlocks {
			writeEntry(dir, sb, positions[i])
		}
		pos := writeSegment(w, "ZISRAWDIRECTORY", dir.Bytes(), 0)
		w.PutInt64At(dirPosOffset, pos)
	}

	return w.Bytes()
}

// WriteFile builds layout into a file under t.TempDir and returns its path.
func WriteFile(t testing.TB, name string, layout Layout) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(layout), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func writeSegment(w *xdr.BufferWriter, id string, data []byte, alloc int) int64 {
	pos := int64(w.Len())
	if alloc < len(data) {
		alloc = (len(data) + 31) &^ 31
	}
	w.WriteStringN(id, 16)
	w.WriteInt64(int64(alloc))
	w.WriteInt64(int64(len(data)))
	w.WriteBytes(data)
	w.WriteZeros(alloc - len(data))
	return pos
}

func writeEntry(w *xdr.BufferWriter, sb SubBlock, filePos int64) {
	storedW, storedH := sb.StoredWidth, sb.StoredHeight
	if storedW == 0 {
		storedW = sb.Width
	}
	if storedH == 0 {
		storedH = sb.Height
	}

	w.WriteStringN("DV", 2)
	w.WriteInt32(sb.PixelType)
	w.WriteInt64(filePos)
	w.WriteInt32(0) // file part
	w.WriteInt32(0) // compression
	w.WriteByte(0)  // pyramid type
	w.WriteZeros(5)

	dims := []struct {
		name        string
		start, size int
		stored      int
	}{
		{"X", sb.X, sb.Width, storedW},
		{"Y", sb.Y, sb.Height, storedH},
		{"C", sb.C, 1, 1},
		{"Z", sb.Z, 1, 1},
		{"T", sb.T, 1, 1},
		{"S", sb.S, 1, 1},
		{"M", sb.M, 1, 1},
	}
	w.WriteInt32(int32(len(dims)))
	for _, d := range dims {
		w.WriteStringN(d.name, 4)
		w.WriteInt32(int32(d.start))
		w.WriteInt32(int32(d.size))
		w.WriteFloat32(0)
		w.WriteInt32(int32(d.stored))
	}
}
