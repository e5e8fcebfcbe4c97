package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/framescan-go/config"
	"github.com/soocke/framescan-go/domain/frame"
	"github.com/soocke/framescan-go/domain/overlay"
)

// discardLogger keeps pipeline logging wired without polluting test output.
var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// planarFrame builds a tight synthetic planar 4:2:0 frame.
func planarFrame(w, h int) *frame.Raw {
	y := make([]byte, w*h)
	for i := range y {
		y[i] = byte(i)
	}
	uvW, uvH := w/2, h/2
	u := make([]byte, uvW*uvH)
	v := make([]byte, uvW*uvH)
	for i := range u {
		u[i] = byte(100 + i)
		v[i] = byte(200 + i)
	}
	return &frame.Raw{
		Layout: frame.LayoutPlanar420,
		Width:  w,
		Height: h,
		Planes: []frame.Plane{
			{Data: y, RowStride: w, PixelStride: 1},
			{Data: u, RowStride: uvW, PixelStride: 1},
			{Data: v, RowStride: uvW, PixelStride: 1},
		},
	}
}

func packedFrame(w, h, stride int) *frame.Raw {
	data := make([]byte, stride*h)
	for i := range data {
		data[i] = byte(i * 3)
	}
	return &frame.Raw{
		Layout: frame.LayoutPacked4,
		Width:  w,
		Height: h,
		Planes: []frame.Plane{{Data: data, RowStride: stride, PixelStride: 4}},
	}
}

// recordingDetector captures what the pipeline hands to the detector.
type recordingDetector struct {
	frames    []*frame.Prepared
	rotations []int
	err       error
}

func (d *recordingDetector) Detect(_ context.Context, p *frame.Prepared, rotation int) ([]Detection, error) {
	d.frames = append(d.frames, p)
	d.rotations = append(d.rotations, rotation)
	if d.err != nil {
		return nil, d.err
	}
	return []Detection{{Value: "stub"}}, nil
}

func testConfig(nth, roi int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.ProcessEveryNthFrame = nth
	cfg.ROISidePixels = roi
	return cfg
}

func TestPipeline_PlanarFrameEndToEnd(t *testing.T) {
	det := &recordingDetector{}
	var overlays []overlay.RectF
	p := New(testConfig(1, 32), det, func(r overlay.RectF, visible bool) {
		if visible {
			overlays = append(overlays, r)
		}
	}, discardLogger)
	defer p.Close()

	res, ok := p.Process(context.Background(), planarFrame(64, 48), 90)
	require.True(t, ok)
	require.NotNil(t, res.Prepared)

	prep := res.Prepared
	assert.Equal(t, frame.FormatNV21, prep.Format)
	assert.Equal(t, image.Pt(32, 32), prep.Size)
	assert.Equal(t, image.Rect(16, 8, 48, 40), prep.CropRect)
	assert.Equal(t, image.Pt(64, 48), prep.OriginalSize)
	assert.Len(t, prep.Data, 32*32+(32*32)/2)

	require.Len(t, det.frames, 1)
	assert.Same(t, prep, det.frames[0])
	assert.Equal(t, []int{90}, det.rotations)
	assert.Equal(t, []Detection{{Value: "stub"}}, res.Detections)

	require.Len(t, overlays, 1)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.FramesIn)
	assert.Equal(t, uint64(1), stats.Accepted)
	assert.Equal(t, uint64(1), stats.Converted)
}

func TestPipeline_ThrottleAcceptsEveryNth(t *testing.T) {
	det := &recordingDetector{}
	p := New(testConfig(3, 0), det, nil, discardLogger)
	defer p.Close()

	accepted := 0
	for i := 0; i < 9; i++ {
		if _, ok := p.Process(context.Background(), planarFrame(16, 16), 0); ok {
			accepted++
		}
	}
	assert.Equal(t, 3, accepted)
	assert.Len(t, det.frames, 3)
	stats := p.Stats()
	assert.Equal(t, uint64(9), stats.FramesIn)
	assert.Equal(t, uint64(6), stats.SkippedGate)
}

func TestPipeline_MalformedPlanarFrameSkipped(t *testing.T) {
	det := &recordingDetector{}
	p := New(testConfig(1, 0), det, nil, discardLogger)
	defer p.Close()

	bad := planarFrame(16, 16)
	bad.Planes = bad.Planes[:2]
	_, ok := p.Process(context.Background(), bad, 0)
	assert.False(t, ok, "malformed frame produces no output")
	assert.Empty(t, det.frames, "detector must not see a malformed frame")

	// The stream continues: the next frame is processed normally.
	_, ok = p.Process(context.Background(), planarFrame(16, 16), 0)
	assert.True(t, ok)
	assert.Len(t, det.frames, 1)
}

func TestPipeline_DetectorFailureIsLocal(t *testing.T) {
	det := &recordingDetector{err: errors.New("decoder exploded")}
	p := New(testConfig(1, 0), det, nil, discardLogger)
	defer p.Close()

	res, ok := p.Process(context.Background(), planarFrame(16, 16), 0)
	require.True(t, ok, "detector failure must not drop the prepared frame")
	assert.Empty(t, res.Detections)

	det.err = nil
	res, ok = p.Process(context.Background(), planarFrame(16, 16), 0)
	require.True(t, ok)
	assert.Len(t, res.Detections, 1)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.DetectorErrors)
	assert.Equal(t, uint64(2), stats.Accepted)
}

func TestPipeline_PackedFrameCompactsPadding(t *testing.T) {
	p := New(testConfig(1, 0), nil, nil, discardLogger)
	defer p.Close()

	w, h, stride := 8, 6, 8*4+12
	res, ok := p.Process(context.Background(), packedFrame(w, h, stride), 0)
	require.True(t, ok)
	prep := res.Prepared
	assert.Equal(t, frame.FormatPacked4, prep.Format)
	assert.Equal(t, w*4, prep.RowStride)
	require.Len(t, prep.Data, w*h*4)
	// Row 1 starts at the padded stride in the source.
	assert.Equal(t, byte(stride*3%256), prep.Data[w*4])
}

func TestPipeline_UnsupportedLayoutSkipped(t *testing.T) {
	p := New(testConfig(1, 0), nil, nil, discardLogger)
	defer p.Close()

	raw := &frame.Raw{Layout: frame.LayoutUnknown, Width: 8, Height: 8}
	_, ok := p.Process(context.Background(), raw, 0)
	assert.False(t, ok)
	_, ok = p.Process(context.Background(), nil, 0)
	assert.False(t, ok, "nil frame after teardown is a no-op")
}

func TestPipeline_OverlayDebounced(t *testing.T) {
	calls := 0
	p := New(testConfig(1, 32), nil, func(overlay.RectF, bool) { calls++ }, discardLogger)
	defer p.Close()

	for i := 0; i < 4; i++ {
		_, ok := p.Process(context.Background(), planarFrame(64, 48), 0)
		require.True(t, ok)
	}
	assert.Equal(t, 1, calls, "identical crop rects emit one overlay update")
}

func TestPipeline_FullFrameCropEmitsHiddenOverlay(t *testing.T) {
	type update struct {
		visible bool
	}
	var updates []update
	// ROI disabled: the crop rect covers the full frame.
	p := New(testConfig(1, 0), nil, func(_ overlay.RectF, visible bool) {
		updates = append(updates, update{visible: visible})
	}, discardLogger)
	defer p.Close()

	_, ok := p.Process(context.Background(), planarFrame(16, 16), 0)
	require.True(t, ok)
	require.Len(t, updates, 1)
	assert.False(t, updates[0].visible)
}

func TestPipeline_ResetRotatesSessionAndSequence(t *testing.T) {
	p := New(testConfig(4, 0), nil, nil, discardLogger)
	defer p.Close()

	first := p.SessionID()
	require.NotEmpty(t, first)

	_, ok := p.Process(context.Background(), planarFrame(16, 16), 0) // frame 0
	require.True(t, ok)
	_, ok = p.Process(context.Background(), planarFrame(16, 16), 0) // frame 1 skipped
	require.False(t, ok)

	p.Reset()
	assert.NotEqual(t, first, p.SessionID())

	_, ok = p.Process(context.Background(), planarFrame(16, 16), 0) // fresh frame 0
	assert.True(t, ok)
}

func TestPipeline_CloseStopsProcessing(t *testing.T) {
	p := New(testConfig(1, 0), nil, nil, discardLogger)
	p.Close()
	_, ok := p.Process(context.Background(), planarFrame(16, 16), 0)
	assert.False(t, ok)
}
