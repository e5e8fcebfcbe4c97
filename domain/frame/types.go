package frame

import "image"

// Layout identifies the native pixel layout of a raw camera frame.
type Layout int

const (
	LayoutUnknown Layout = iota
	// LayoutPlanar420 is three-plane YUV 4:2:0: a full-resolution luma plane
	// followed by two half-resolution chroma planes, each independently
	// strided and pixel-strided.
	LayoutPlanar420
	// LayoutPacked4 is a single plane of 4 bytes per pixel (BGRA-like).
	LayoutPacked4
)

func (l Layout) String() string {
	switch l {
	case LayoutPlanar420:
		return "planar420"
	case LayoutPacked4:
		return "packed4"
	default:
		return "unknown"
	}
}

// PixelFormat identifies the byte layout of a prepared buffer.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	// FormatNV21 stores width*height luma bytes row-major with no padding,
	// followed by (width*height)/2 bytes of interleaved V,U chroma pairs,
	// one pair per 2x2 luma block.
	FormatNV21
	// FormatPacked4 stores 4 bytes per pixel, rows tightly packed unless
	// RowStride says otherwise.
	FormatPacked4
)

func (f PixelFormat) String() string {
	switch f {
	case FormatNV21:
		return "nv21"
	case FormatPacked4:
		return "packed4"
	default:
		return "unknown"
	}
}

// ByteLen returns the buffer length the format requires for a w x h frame.
func (f PixelFormat) ByteLen(w, h int) int {
	switch f {
	case FormatNV21:
		return w*h + (w*h)/2
	case FormatPacked4:
		return w * h * 4
	default:
		return 0
	}
}

// Plane is one channel of raw pixel data. Data is a read-only view owned by
// the capture source; it must not be written to or retained.
type Plane struct {
	Data      []byte
	RowStride int
	// PixelStride is the byte distance between consecutive samples in a row.
	// Zero is treated as 1.
	PixelStride int
	// Width and Height are the plane's declared dimensions. Zero means
	// "derive from the frame dimensions" (halved, rounded up, for chroma).
	Width  int
	Height int
}

func (p Plane) pixelStride() int {
	if p.PixelStride < 1 {
		return 1
	}
	return p.PixelStride
}

// chromaDims resolves the plane's dimensions against the frame size,
// falling back to half resolution rounded up when undeclared.
func (p Plane) chromaDims(frameW, frameH int) (int, int) {
	w, h := p.Width, p.Height
	if w <= 0 {
		w = (frameW + 1) / 2
	}
	if h <= 0 {
		h = (frameH + 1) / 2
	}
	return w, h
}

// Raw is one camera frame as delivered by the capture source. It is borrowed
// for the duration of a single pipeline invocation and never retained.
type Raw struct {
	Layout Layout
	Width  int
	Height int
	Planes []Plane
}

// Prepared is an immutable, single-owner frame in a detector-ready layout.
// It is created once per accepted frame, consumed by the detector and the
// overlay mapper, then discarded.
type Prepared struct {
	Data   []byte
	Format PixelFormat
	// RowStride is the byte width of one row of Data (luma row for NV21).
	RowStride int
	// Size is the logical pixel size of Data.
	Size image.Point
	// CropRect is the pixel rectangle of the original frame this buffer was
	// extracted from. Always fully contained in [0, OriginalSize).
	CropRect image.Rectangle
	// OriginalSize is the pre-crop frame size, propagated unchanged through
	// repeated cropping. The overlay mapper relies on it.
	OriginalSize image.Point
}
