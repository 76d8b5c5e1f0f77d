// Package czi reads the ZISRAW container structure of Zeiss CZI files.
//
// It decodes the segments a metadata reader needs: the file header, the XML
// metadata segment, the subblock directory and the per-subblock metadata.
// Pixel payloads are never decompressed.
//
// Example usage:
//
//	f, err := czi.OpenFile("plate.czi")
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//
//	xml, _ := f.MetadataXML()
//	types := f.PixelTypes() // channel index -> pixel type
package czi

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sebi06/czimetadata-tools/internal/xdr"
)

// Segment IDs
const (
	SegmentFile      = "ZISRAWFILE"
	SegmentDirectory = "ZISRAWDIRECTORY"
	SegmentSubBlock  = "ZISRAWSUBBLOCK"
	SegmentMetadata  = "ZISRAWMETADATA"
	SegmentDeleted   = "DELETED"
)

// Layout constants
const (
	segmentHeaderSize   = 32
	segmentIDSize       = 16
	metadataHeaderSize  = 256
	directoryHeaderSize = 128
	entryDVBaseSize     = 32
	dimensionEntrySize  = 20
	subBlockMinHeader   = 256
	subBlockFixedFields = 16
)

// Errors
var (
	ErrInvalidMagic   = errors.New("czi: not a ZISRAW file")
	ErrInvalidSegment = errors.New("czi: invalid segment")
	ErrNoMetadata     = errors.New("czi: file has no metadata segment")
	ErrNoDirectory    = errors.New("czi: file has no subblock directory")
	ErrIndexRange     = errors.New("czi: subblock index out of range")
)

// Magic is the segment ID at offset 0 of every CZI file, as stored on disk.
var Magic = []byte("ZISRAWFILE\x00\x00\x00\x00\x00\x00")

// FileHeader is the content of the ZISRAWFILE segment.
type FileHeader struct {
	Major                       int32
	Minor                       int32
	PrimaryFileGUID             [16]byte
	FileGUID                    [16]byte
	FilePart                    int32
	DirectoryPosition           int64
	MetadataPosition            int64
	UpdatePending               bool
	AttachmentDirectoryPosition int64
}

type segmentHeader struct {
	ID            string
	AllocatedSize int64
	UsedSize      int64
}

// File is an open CZI container.
type File struct {
	r       io.ReaderAt
	size    int64
	header  FileHeader
	entries []DirectoryEntry
	closer  io.Closer
}

// OpenReader opens a CZI container from a random-access reader of the given size.
// The subblock directory is read eagerly; metadata and subblocks are read on demand.
func OpenReader(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r, size: size}

	seg, data, err := f.readSegment(0)
	if err != nil {
		if errors.Is(err, ErrInvalidSegment) {
			return nil, ErrInvalidMagic
		}
		return nil, err
	}
	if seg.ID != SegmentFile {
		return nil, ErrInvalidMagic
	}
	if err := f.parseFileHeader(data); err != nil {
		return nil, err
	}

	if f.header.DirectoryPosition > 0 {
		entries, err := f.readDirectory(f.header.DirectoryPosition)
		if err != nil {
			return nil, err
		}
		f.entries = entries
	}
	return f, nil
}

// OpenFile opens a CZI container from the filesystem.
// The returned File must be closed to release the file handle.
func OpenFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}
	f, err := OpenReader(fh, info.Size())
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.closer = fh
	return f, nil
}

// SetCloser attaches a closer that Close releases, for readers opened
// with OpenReader whose lifetime the File should own.
func (f *File) SetCloser(c io.Closer) {
	f.closer = c
}

// Close releases the underlying file handle, if any.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// Header returns the file header.
func (f *File) Header() FileHeader {
	return f.header
}

// Size returns the container size in bytes.
func (f *File) Size() int64 {
	return f.size
}

// Directory returns the subblock directory entries in file order.
func (f *File) Directory() []DirectoryEntry {
	return f.entries
}

// NumSubBlocks returns the number of subblocks listed in the directory.
func (f *File) NumSubBlocks() int {
	return len(f.entries)
}

// MetadataXML returns the raw XML of the metadata segment.
func (f *File) MetadataXML() ([]byte, error) {
	if f.header.MetadataPosition <= 0 {
		return nil, ErrNoMetadata
	}
	seg, data, err := f.readSegment(f.header.MetadataPosition)
	if err != nil {
		return nil, err
	}
	if seg.ID != SegmentMetadata {
		return nil, fmt.Errorf("%w: expected %s at %d, found %q",
			ErrInvalidSegment, SegmentMetadata, f.header.MetadataPosition, seg.ID)
	}

	r := xdr.NewReader(data)
	xmlSize, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if err := r.SetPos(metadataHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: metadata header truncated", ErrInvalidSegment)
	}
	xml, err := r.ReadBytes(int(xmlSize))
	if err != nil {
		return nil, fmt.Errorf("%w: metadata xml truncated", ErrInvalidSegment)
	}
	return xml, nil
}

// PixelTypes returns the pixel type of each channel, keyed by channel index.
// The first full-resolution subblock found for a channel determines its type.
func (f *File) PixelTypes() map[int]PixelType {
	types := make(map[int]PixelType)
	for i := range f.entries {
		e := &f.entries[i]
		if !e.IsLayer0() {
			continue
		}
		c := e.Start("C")
		if _, ok := types[c]; !ok {
			types[c] = e.PixelType
		}
	}
	return types
}

func (f *File) parseFileHeader(data []byte) error {
	r := xdr.NewReader(data)
	h := &f.header

	var err error
	read32 := func(dst *int32) {
		if err == nil {
			*dst, err = r.ReadInt32()
		}
	}
	read64 := func(dst *int64) {
		if err == nil {
			*dst, err = r.ReadInt64()
		}
	}
	readGUID := func(dst *[16]byte) {
		if err == nil {
			var b []byte
			b, err = r.ReadBytes(16)
			copy(dst[:], b)
		}
	}

	var reserved, pending int32
	read32(&h.Major)
	read32(&h.Minor)
	read32(&reserved)
	read32(&reserved)
	readGUID(&h.PrimaryFileGUID)
	readGUID(&h.FileGUID)
	read32(&h.FilePart)
	read64(&h.DirectoryPosition)
	read64(&h.MetadataPosition)
	read32(&pending)
	read64(&h.AttachmentDirectoryPosition)
	if err != nil {
		return fmt.Errorf("%w: file header: %v", ErrInvalidSegment, err)
	}
	h.UpdatePending = pending != 0
	return nil
}

func (f *File) readDirectory(pos int64) ([]DirectoryEntry, error) {
	seg, data, err := f.readSegment(pos)
	if err != nil {
		return nil, err
	}
	if seg.ID != SegmentDirectory {
		return nil, fmt.Errorf("%w: expected %s at %d, found %q",
			ErrInvalidSegment, SegmentDirectory, pos, seg.ID)
	}

	r := xdr.NewReader(data)
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 || int64(count)*entryDVBaseSize > int64(len(data)) {
		return nil, fmt.Errorf("%w: directory entry count %d", ErrInvalidSegment, count)
	}
	if err := r.SetPos(directoryHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: directory header truncated", ErrInvalidSegment)
	}

	entries := make([]DirectoryEntry, 0, count)
	for i := 0; i < int(count); i++ {
		e, err := readEntryDV(r)
		if err != nil {
			return nil, fmt.Errorf("czi: directory entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readEntryDV(r *xdr.Reader) (DirectoryEntry, error) {
	var e DirectoryEntry

	schema, err := r.ReadStringN(2)
	if err != nil {
		return e, err
	}
	if schema != "DV" {
		return e, fmt.Errorf("%w: entry schema %q", ErrInvalidSegment, schema)
	}
	pt, err := r.ReadInt32()
	if err != nil {
		return e, err
	}
	e.PixelType = PixelType(pt)
	if e.FilePosition, err = r.ReadInt64(); err != nil {
		return e, err
	}
	if e.FilePart, err = r.ReadInt32(); err != nil {
		return e, err
	}
	comp, err := r.ReadInt32()
	if err != nil {
		return e, err
	}
	e.Compression = Compression(comp)
	if e.PyramidType, err = r.ReadByte(); err != nil {
		return e, err
	}
	if err := r.Skip(5); err != nil {
		return e, err
	}
	dimCount, err := r.ReadInt32()
	if err != nil {
		return e, err
	}
	if dimCount < 0 || int(dimCount)*dimensionEntrySize > r.Len() {
		return e, fmt.Errorf("%w: dimension count %d", ErrInvalidSegment, dimCount)
	}

	e.Dimensions = make([]DimensionEntry, dimCount)
	for i := range e.Dimensions {
		d := &e.Dimensions[i]
		if d.Dimension, err = r.ReadStringN(4); err != nil {
			return e, err
		}
		if d.Start, err = r.ReadInt32(); err != nil {
			return e, err
		}
		if d.Size, err = r.ReadInt32(); err != nil {
			return e, err
		}
		if d.StartCoordinate, err = r.ReadFloat32(); err != nil {
			return e, err
		}
		if d.StoredSize, err = r.ReadInt32(); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (f *File) readSegmentHeader(pos int64) (segmentHeader, error) {
	var seg segmentHeader
	if pos < 0 || pos+segmentHeaderSize > f.size {
		return seg, fmt.Errorf("%w: segment header at %d outside file", ErrInvalidSegment, pos)
	}
	buf := make([]byte, segmentHeaderSize)
	if _, err := f.r.ReadAt(buf, pos); err != nil {
		return seg, fmt.Errorf("czi: read segment header at %d: %w", pos, err)
	}

	r := xdr.NewReader(buf)
	seg.ID, _ = r.ReadStringN(segmentIDSize)
	seg.AllocatedSize, _ = r.ReadInt64()
	seg.UsedSize, _ = r.ReadInt64()
	if seg.UsedSize <= 0 || seg.UsedSize > seg.AllocatedSize && seg.AllocatedSize > 0 {
		seg.UsedSize = seg.AllocatedSize
	}
	if seg.UsedSize < 0 || pos+segmentHeaderSize+seg.UsedSize > f.size {
		return seg, fmt.Errorf("%w: segment %q at %d exceeds file size", ErrInvalidSegment, seg.ID, pos)
	}
	return seg, nil
}

// readSegment reads the header and the used data portion of a segment.
func (f *File) readSegment(pos int64) (segmentHeader, []byte, error) {
	seg, err := f.readSegmentHeader(pos)
	if err != nil {
		return seg, nil, err
	}
	data := make([]byte, seg.UsedSize)
	if _, err := f.r.ReadAt(data, pos+segmentHeaderSize); err != nil && !errors.Is(err, io.EOF) {
		return seg, nil, fmt.Errorf("czi: read segment %q at %d: %w", seg.ID, pos, err)
	}
	return seg, data, nil
}
