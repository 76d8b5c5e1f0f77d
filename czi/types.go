package czi

// PixelType defines the storage format of a subblock's pixels.
type PixelType int32

const (
	// PixelTypeGray8 is 8-bit unsigned grayscale.
	PixelTypeGray8 PixelType = 0
	// PixelTypeGray16 is 16-bit unsigned grayscale.
	PixelTypeGray16 PixelType = 1
	// PixelTypeGray32Float is 32-bit float grayscale.
	PixelTypeGray32Float PixelType = 2
	// PixelTypeBgr24 is 8-bit per component BGR.
	PixelTypeBgr24 PixelType = 3
	// PixelTypeBgr48 is 16-bit per component BGR.
	PixelTypeBgr48 PixelType = 4
	// PixelTypeBgr96Float is 32-bit float per component BGR.
	PixelTypeBgr96Float PixelType = 8
	// PixelTypeBgra32 is 8-bit per component BGRA.
	PixelTypeBgra32 PixelType = 9
	// PixelTypeGray64ComplexFloat is a complex grayscale value (two float32).
	PixelTypeGray64ComplexFloat PixelType = 10
	// PixelTypeBgr192ComplexFloat is a complex BGR value (three complex pairs).
	PixelTypeBgr192ComplexFloat PixelType = 11
	// PixelTypeGray32 is 32-bit signed grayscale.
	PixelTypeGray32 PixelType = 12
	// PixelTypeGray64 is 64-bit float grayscale.
	PixelTypeGray64 PixelType = 13
)

// String returns the label used for the pixel type in CZI metadata.
func (p PixelType) String() string {
	switch p {
	case PixelTypeGray8:
		return "Gray8"
	case PixelTypeGray16:
		return "Gray16"
	case PixelTypeGray32Float:
		return "Gray32Float"
	case PixelTypeBgr24:
		return "Bgr24"
	case PixelTypeBgr48:
		return "Bgr48"
	case PixelTypeBgr96Float:
		return "Bgr96Float"
	case PixelTypeBgra32:
		return "Bgra32"
	case PixelTypeGray64ComplexFloat:
		return "Gray64ComplexFloat"
	case PixelTypeBgr192ComplexFloat:
		return "Bgr192ComplexFloat"
	case PixelTypeGray32:
		return "Gray32"
	case PixelTypeGray64:
		return "Gray64"
	default:
		return "Invalid"
	}
}

// IsRGB returns true if the pixel type stores color components rather than
// a single intensity.
func (p PixelType) IsRGB() bool {
	switch p {
	case PixelTypeBgr24, PixelTypeBgr48, PixelTypeBgr96Float,
		PixelTypeBgra32, PixelTypeBgr192ComplexFloat:
		return true
	default:
		return false
	}
}

// Compression defines the compression method of a subblock's pixel data.
type Compression int32

const (
	CompressionUncompressed Compression = 0
	CompressionJpg          Compression = 1
	CompressionLZW          Compression = 2
	CompressionJpgXr        Compression = 4
	CompressionZstd0        Compression = 5
	CompressionZstd1        Compression = 6
)

// String returns a string representation of the compression type.
func (c Compression) String() string {
	switch c {
	case CompressionUncompressed:
		return "uncompressed"
	case CompressionJpg:
		return "jpg"
	case CompressionLZW:
		return "lzw"
	case CompressionJpgXr:
		return "jpgxr"
	case CompressionZstd0:
		return "zstd0"
	case CompressionZstd1:
		return "zstd1"
	default:
		return "unknown"
	}
}

// DimensionEntry describes the extent of a subblock along one dimension.
type DimensionEntry struct {
	Dimension       string // "X", "Y", "C", "Z", "T", "S", "M", ...
	Start           int32
	Size            int32
	StartCoordinate float32
	StoredSize      int32
}

// DirectoryEntry describes one subblock as listed in the subblock directory.
type DirectoryEntry struct {
	PixelType    PixelType
	FilePosition int64
	FilePart     int32
	Compression  Compression
	PyramidType  uint8
	Dimensions   []DimensionEntry
}

// Dimension returns the entry for the named dimension, or nil if the
// subblock does not carry it.
func (e *DirectoryEntry) Dimension(name string) *DimensionEntry {
	for i := range e.Dimensions {
		if e.Dimensions[i].Dimension == name {
			return &e.Dimensions[i]
		}
	}
	return nil
}

// Start returns the start index along the named dimension.
// Dimensions absent from the entry are treated as a single plane at index 0.
func (e *DirectoryEntry) Start(name string) int {
	if d := e.Dimension(name); d != nil {
		return int(d.Start)
	}
	return 0
}

// IsLayer0 returns true if the subblock holds full-resolution data, i.e. it
// is not a pyramid level.
func (e *DirectoryEntry) IsLayer0() bool {
	x, y := e.Dimension("X"), e.Dimension("Y")
	if x == nil || y == nil {
		return true
	}
	return x.Size == x.StoredSize && y.Size == y.StoredSize
}
