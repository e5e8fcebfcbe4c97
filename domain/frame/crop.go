package frame

import "image"

// CropSquare extracts a centered square region of interest of the desired
// side length from p. side <= 0 disables cropping. The input is returned
// unchanged (no allocation) when no crop applies: side covers both
// dimensions, the clamped side degenerates below the format minimum, or the
// format is not croppable.
//
// The result's CropRect records where the square was cut from and
// OriginalSize is propagated unchanged from the input.
func CropSquare(p *Prepared, side int) *Prepared {
	if p == nil || side <= 0 {
		return p
	}
	w, h := p.Size.X, p.Size.Y
	if side >= w && side >= h {
		return p
	}
	switch p.Format {
	case FormatNV21:
		return cropNV21(p, side)
	case FormatPacked4:
		return cropPacked4(p, side)
	default:
		// Not a croppable layout; pass through.
		return p
	}
}

// cropNV21 cuts a square from an NV21 buffer. Side and both start
// coordinates are forced even: chroma is addressed at half the luma
// resolution, and an odd origin would pair V,U bytes across block
// boundaries, corrupting color along the crop edge.
func cropNV21(p *Prepared, side int) *Prepared {
	w, h := p.Size.X, p.Size.Y
	if side > w {
		side = w
	}
	if side > h {
		side = h
	}
	side &^= 1
	if side < 2 {
		return p
	}
	startX := evenStart((w-side)/2, side, w)
	startY := evenStart((h-side)/2, side, h)

	out := make([]byte, FormatNV21.ByteLen(side, side))
	di := 0
	for row := startY; row < startY+side; row++ {
		src := row*w + startX
		if src+side > len(p.Data) {
			break
		}
		copy(out[di:di+side], p.Data[src:src+side])
		di += side
	}
	// Chroma rows live past the luma region and are byte-addressed exactly
	// like luma rows: one V,U pair per subsampled column is 2 bytes, so a
	// chroma row of side/2 columns spans side bytes at offset startX.
	yLen := w * h
	di = side * side
	for row := startY / 2; row < startY/2+side/2; row++ {
		src := yLen + row*w + startX
		if src+side > len(p.Data) {
			break
		}
		copy(out[di:di+side], p.Data[src:src+side])
		di += side
	}
	return &Prepared{
		Data:         out,
		Format:       FormatNV21,
		RowStride:    side,
		Size:         image.Pt(side, side),
		CropRect:     image.Rect(startX, startY, startX+side, startY+side),
		OriginalSize: p.OriginalSize,
	}
}

func cropPacked4(p *Prepared, side int) *Prepared {
	w, h := p.Size.X, p.Size.Y
	if side > w {
		side = w
	}
	if side > h {
		side = h
	}
	if side < 1 {
		return p
	}
	startX := (w - side) / 2
	startY := (h - side) / 2
	rowStride := p.RowStride
	if rowStride <= 0 {
		rowStride = w * 4
	}
	out := make([]byte, FormatPacked4.ByteLen(side, side))
	rowBytes := side * 4
	for row := 0; row < side; row++ {
		src := (startY+row)*rowStride + startX*4
		if src >= len(p.Data) {
			break
		}
		n := rowBytes
		if src+n > len(p.Data) {
			n = len(p.Data) - src
		}
		copy(out[row*rowBytes:row*rowBytes+n], p.Data[src:src+n])
	}
	return &Prepared{
		Data:         out,
		Format:       FormatPacked4,
		RowStride:    rowBytes,
		Size:         image.Pt(side, side),
		CropRect:     image.Rect(startX, startY, startX+side, startY+side),
		OriginalSize: p.OriginalSize,
	}
}

// evenStart forces a crop origin even and walks it back in steps of 2 while
// the crop would overrun the dimension, flooring at zero.
func evenStart(start, side, dim int) int {
	start &^= 1
	for start > 0 && start+side > dim {
		start -= 2
	}
	if start < 0 {
		start = 0
	}
	return start
}
