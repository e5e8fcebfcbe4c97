package frame

import (
	"errors"
	"image"
)

var (
	// ErrMissingPlanes is returned when a planar frame carries fewer than
	// three planes.
	ErrMissingPlanes = errors.New("frame: planar 4:2:0 frame needs 3 planes")
	// ErrBadDimensions is returned for non-positive frame dimensions.
	ErrBadDimensions = errors.New("frame: non-positive frame dimensions")
)

// ToNV21 converts a 3-plane planar YUV 4:2:0 raw frame into a single NV21
// buffer: width*height luma bytes with row padding stripped, followed by
// (width*height)/2 bytes of interleaved V,U pairs.
//
// Truncated or padded source planes never fail the conversion: each chroma
// row is clamped to the columns actually available in both planes, and the
// copy stops silently once the destination or a source plane is exhausted.
// The returned buffer always has the exact NV21 length; bytes past an early
// stop stay zero and carry no meaning.
//
// The function is pure and CPU-bound, safe to run on a worker goroutine.
func ToNV21(r *Raw) (*Prepared, error) {
	if r == nil || r.Width <= 0 || r.Height <= 0 {
		return nil, ErrBadDimensions
	}
	if len(r.Planes) < 3 {
		return nil, ErrMissingPlanes
	}
	w, h := r.Width, r.Height
	yPlane, uPlane, vPlane := r.Planes[0], r.Planes[1], r.Planes[2]
	out := make([]byte, FormatNV21.ByteLen(w, h))

	// Luma: one contiguous row of width bytes per source row, located via the
	// plane's row stride. This strips any row padding.
	for row := 0; row < h; row++ {
		src := row * yPlane.RowStride
		if src >= len(yPlane.Data) {
			break
		}
		n := w
		if src+n > len(yPlane.Data) {
			n = len(yPlane.Data) - src
		}
		copy(out[row*w:row*w+n], yPlane.Data[src:src+n])
	}

	// Chroma: V first, then U, per subsampled column. Row width is clamped to
	// what both planes can still supply so malformed buffers degrade to a
	// shorter row instead of an error.
	uvW, uvH := uPlane.chromaDims(w, h)
	uPix, vPix := uPlane.pixelStride(), vPlane.pixelStride()
	idx := w * h
	for row := 0; row < uvH; row++ {
		uRow := row * uPlane.RowStride
		vRow := row * vPlane.RowStride
		if uRow >= len(uPlane.Data) || vRow >= len(vPlane.Data) {
			break
		}
		cols := uvW
		if c := ceilDiv(len(uPlane.Data)-uRow, uPix); c < cols {
			cols = c
		}
		if c := ceilDiv(len(vPlane.Data)-vRow, vPix); c < cols {
			cols = c
		}
		for col := 0; col < cols; col++ {
			if idx+2 > len(out) {
				return wrapNV21(out, w, h), nil
			}
			out[idx] = vPlane.Data[vRow+col*vPix]
			out[idx+1] = uPlane.Data[uRow+col*uPix]
			idx += 2
		}
	}
	return wrapNV21(out, w, h), nil
}

func wrapNV21(data []byte, w, h int) *Prepared {
	return &Prepared{
		Data:         data,
		Format:       FormatNV21,
		RowStride:    w,
		Size:         image.Pt(w, h),
		CropRect:     image.Rect(0, 0, w, h),
		OriginalSize: image.Pt(w, h),
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// FromPacked wraps a single-plane packed 4-byte raw frame as a Prepared
// frame. Padded rows are compacted into a fresh tight buffer; an already
// tight plane is aliased, so the result is only valid while the raw frame is
// borrowed (one pipeline invocation).
func FromPacked(r *Raw) (*Prepared, error) {
	if r == nil || r.Width <= 0 || r.Height <= 0 {
		return nil, ErrBadDimensions
	}
	if len(r.Planes) < 1 {
		return nil, errors.New("frame: packed frame needs 1 plane")
	}
	w, h := r.Width, r.Height
	plane := r.Planes[0]
	tight := w * 4
	data := plane.Data
	if plane.RowStride != tight || len(data) < FormatPacked4.ByteLen(w, h) {
		buf := make([]byte, FormatPacked4.ByteLen(w, h))
		for row := 0; row < h; row++ {
			src := row * plane.RowStride
			if src >= len(data) {
				break
			}
			n := tight
			if src+n > len(data) {
				n = len(data) - src
			}
			copy(buf[row*tight:row*tight+n], data[src:src+n])
		}
		data = buf
	} else {
		data = data[:FormatPacked4.ByteLen(w, h)]
	}
	return &Prepared{
		Data:         data,
		Format:       FormatPacked4,
		RowStride:    tight,
		Size:         image.Pt(w, h),
		CropRect:     image.Rect(0, 0, w, h),
		OriginalSize: image.Pt(w, h),
	}, nil
}
