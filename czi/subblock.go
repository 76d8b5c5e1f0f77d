package czi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sebi06/czimetadata-tools/internal/xdr"
)

// SubBlock is the header portion of a ZISRAWSUBBLOCK segment together with
// its metadata XML. Pixel data and attachments are not loaded.
type SubBlock struct {
	Entry          DirectoryEntry
	MetadataSize   int32
	AttachmentSize int32
	DataSize       int64
	MetadataXML    []byte
}

// SubBlockMetadata holds the acquisition tags stored with a subblock.
// Pointer fields are nil when the tag is absent or unparsable.
type SubBlockMetadata struct {
	StageX          *float64
	StageY          *float64
	FocusPosition   *float64
	AcquisitionTime *time.Time
}

// SubBlock reads the header and metadata of the i-th directory entry.
func (f *File) SubBlock(i int) (*SubBlock, error) {
	if i < 0 || i >= len(f.entries) {
		return nil, ErrIndexRange
	}
	pos := f.entries[i].FilePosition

	seg, err := f.readSegmentHeader(pos)
	if err != nil {
		return nil, err
	}
	if seg.ID != SegmentSubBlock {
		return nil, fmt.Errorf("%w: expected %s at %d, found %q",
			ErrInvalidSegment, SegmentSubBlock, pos, seg.ID)
	}

	dataPos := pos + segmentHeaderSize
	fixed := make([]byte, subBlockFixedFields+entryDVBaseSize)
	if int64(len(fixed)) > seg.UsedSize {
		return nil, fmt.Errorf("%w: subblock at %d truncated", ErrInvalidSegment, pos)
	}
	if _, err := f.r.ReadAt(fixed, dataPos); err != nil {
		return nil, fmt.Errorf("czi: read subblock at %d: %w", pos, err)
	}

	r := xdr.NewReader(fixed)
	sb := &SubBlock{}
	sb.MetadataSize, _ = r.ReadInt32()
	sb.AttachmentSize, _ = r.ReadInt32()
	sb.DataSize, _ = r.ReadInt64()
	r.SetPos(len(fixed) - 4)
	dimCount, _ := r.ReadInt32()
	if dimCount < 0 || sb.MetadataSize < 0 {
		return nil, fmt.Errorf("%w: subblock at %d has negative sizes", ErrInvalidSegment, pos)
	}

	headerSize := max(subBlockMinHeader, subBlockFixedFields+entryDVBaseSize+int(dimCount)*dimensionEntrySize)
	total := int64(headerSize) + int64(sb.MetadataSize)
	if total > seg.UsedSize {
		return nil, fmt.Errorf("%w: subblock at %d metadata exceeds segment", ErrInvalidSegment, pos)
	}

	buf := make([]byte, total)
	if _, err := f.r.ReadAt(buf, dataPos); err != nil {
		return nil, fmt.Errorf("czi: read subblock at %d: %w", pos, err)
	}

	r = xdr.NewReader(buf)
	r.SetPos(subBlockFixedFields)
	if sb.Entry, err = readEntryDV(r); err != nil {
		return nil, fmt.Errorf("czi: subblock at %d: %w", pos, err)
	}
	r.SetPos(headerSize)
	sb.MetadataXML, _ = r.ReadBytes(int(sb.MetadataSize))
	return sb, nil
}

type subBlockTags struct {
	StageXPosition  string `xml:"Tags>StageXPosition"`
	StageYPosition  string `xml:"Tags>StageYPosition"`
	FocusPosition   string `xml:"Tags>FocusPosition"`
	AcquisitionTime string `xml:"Tags>AcquisitionTime"`
}

// Metadata parses the subblock's metadata XML.
// A subblock without metadata yields an empty SubBlockMetadata.
func (sb *SubBlock) Metadata() (SubBlockMetadata, error) {
	var md SubBlockMetadata
	raw := bytes.TrimRight(sb.MetadataXML, "\x00")
	if len(bytes.TrimSpace(raw)) == 0 {
		return md, nil
	}

	var tags subBlockTags
	if err := xml.Unmarshal(raw, &tags); err != nil {
		return md, fmt.Errorf("czi: subblock metadata: %w", err)
	}
	md.StageX = parseFloatTag(tags.StageXPosition)
	md.StageY = parseFloatTag(tags.StageYPosition)
	md.FocusPosition = parseFloatTag(tags.FocusPosition)
	if s := strings.TrimSpace(tags.AcquisitionTime); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			md.AcquisitionTime = &t
		}
	}
	return md, nil
}

func parseFloatTag(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
