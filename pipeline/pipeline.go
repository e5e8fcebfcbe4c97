// Package pipeline prepares raw camera frames for a pattern detector:
// frame throttling, planar-YUV to NV21 conversion, centered square ROI
// cropping, and rotation-aware overlay geometry.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/framescan-go/config"
	"github.com/soocke/framescan-go/domain/frame"
	"github.com/soocke/framescan-go/domain/overlay"
)

// Detection is one decoded result from the external detector.
type Detection struct {
	Value string
}

// Detector is the external pattern-detection engine. It receives a prepared
// buffer plus the sensor rotation and returns zero or more results. Failures
// are local to one frame: the pipeline logs them and moves on.
type Detector interface {
	Detect(ctx context.Context, p *frame.Prepared, rotationDegrees int) ([]Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, p *frame.Prepared, rotationDegrees int) ([]Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, p *frame.Prepared, rotationDegrees int) ([]Detection, error) {
	return f(ctx, p, rotationDegrees)
}

// OverlayFunc receives overlay geometry for each processed frame. visible is
// false when there is no region worth drawing (full-frame crop). Suppressed
// (debounced) updates are not delivered at all.
type OverlayFunc func(rect overlay.RectF, visible bool)

// Result is the outcome of one accepted frame.
type Result struct {
	Prepared   *frame.Prepared
	Detections []Detection
}

// Stats summarises pipeline behaviour for instrumentation.
type Stats struct {
	SessionID      string
	FramesIn       uint64
	Accepted       uint64
	SkippedGate    uint64
	Converted      uint64
	DetectorErrors uint64
	AvgConvert     time.Duration
}

// Pipeline composes gate, converter, cropper and overlay mapper. Frames flow
// through Process strictly sequentially; the gate drops everything that
// arrives while a frame is in flight.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	gate     *Gate
	worker   *convertWorker
	mapper   *overlay.Mapper
	detector Detector
	overlay  OverlayFunc

	sessionID atomic.Pointer[string]

	framesIn     atomic.Uint64
	accepted     atomic.Uint64
	skippedGate  atomic.Uint64
	converted    atomic.Uint64
	detectorErrs atomic.Uint64
	convertNanos atomic.Uint64
	lastStatsLog atomic.Int64 // unix nanos
	closed       atomic.Bool
}

// New builds a pipeline from validated configuration. detector and onOverlay
// may be nil; logger may be nil for silence.
func New(cfg *config.Config, detector Detector, onOverlay OverlayFunc, logger *slog.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	_ = cfg.Validate()
	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		gate:     NewGate(cfg.ProcessEveryNthFrame, cfg.MinFrameInterval()),
		worker:   newConvertWorker(),
		mapper:   &overlay.Mapper{},
		detector: detector,
		overlay:  onOverlay,
	}
	id := uuid.NewString()
	p.sessionID.Store(&id)
	return p
}

// SessionID identifies the current frame sequence; it rotates on Reset.
func (p *Pipeline) SessionID() string {
	if id := p.sessionID.Load(); id != nil {
		return *id
	}
	return ""
}

// Process runs one raw frame through gate, conversion and cropping, hands
// the prepared buffer to the detector and emits overlay geometry. It returns
// ok=false when the frame was skipped or no frame could be produced; the
// stream always continues with the next frame.
//
// The raw frame is borrowed for the duration of the call only.
func (p *Pipeline) Process(ctx context.Context, raw *frame.Raw, rotationDegrees int) (*Result, bool) {
	p.framesIn.Add(1)
	if raw == nil || p.closed.Load() {
		return nil, false
	}
	release, ok := p.gate.TryAcquire()
	if !ok {
		p.skippedGate.Add(1)
		return nil, false
	}
	defer release()

	var prepared *frame.Prepared
	switch raw.Layout {
	case frame.LayoutPlanar420:
		if len(raw.Planes) < 3 {
			p.logWarn("planar frame missing planes", "planes", len(raw.Planes))
			return nil, false
		}
		start := time.Now()
		out, err := p.worker.convert(raw)
		if err != nil {
			p.logWarn("nv21 conversion failed", "error", err)
			return nil, false
		}
		p.convertNanos.Add(uint64(time.Since(start).Nanoseconds()))
		p.converted.Add(1)
		prepared = out
	case frame.LayoutPacked4:
		out, err := frame.FromPacked(raw)
		if err != nil {
			p.logWarn("packed frame rejected", "error", err)
			return nil, false
		}
		prepared = out
	default:
		p.logWarn("unsupported frame layout", "layout", raw.Layout.String())
		return nil, false
	}

	prepared = frame.CropSquare(prepared, p.cfg.ROISidePixels)
	p.accepted.Add(1)

	if p.overlay != nil {
		rect, visible, changed := p.mapper.Map(prepared.CropRect, prepared.OriginalSize, float64(rotationDegrees))
		if changed {
			p.overlay(rect, visible)
		}
	}

	res := &Result{Prepared: prepared}
	if p.detector != nil {
		dets, err := p.detector.Detect(ctx, prepared, rotationDegrees)
		if err != nil {
			// A missed detection is not fatal to the stream.
			p.detectorErrs.Add(1)
			p.logWarn("detector failed", "error", err)
		} else {
			res.Detections = dets
		}
	}

	p.maybeLogStats()
	return res, true
}

// Reset clears gate and overlay state between stream lifecycle transitions
// (pause/resume). It does not abort in-flight work; the next frame simply
// starts a fresh sequence under a new session ID.
func (p *Pipeline) Reset() {
	p.gate.Reset()
	p.mapper.Reset()
	id := uuid.NewString()
	p.sessionID.Store(&id)
}

// Close shuts down the conversion worker. Process becomes a no-op.
func (p *Pipeline) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.worker.close()
	}
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	converted := p.converted.Load()
	var avg time.Duration
	if converted > 0 {
		avg = time.Duration(p.convertNanos.Load() / converted)
	}
	return Stats{
		SessionID:      p.SessionID(),
		FramesIn:       p.framesIn.Load(),
		Accepted:       p.accepted.Load(),
		SkippedGate:    p.skippedGate.Load(),
		Converted:      converted,
		DetectorErrors: p.detectorErrs.Load(),
		AvgConvert:     avg,
	}
}

func (p *Pipeline) maybeLogStats() {
	if p.logger == nil {
		return
	}
	interval := p.cfg.StatsLogInterval()
	now := time.Now().UnixNano()
	last := p.lastStatsLog.Load()
	if last != 0 && time.Duration(now-last) < interval {
		return
	}
	if !p.lastStatsLog.CompareAndSwap(last, now) {
		return
	}
	if last == 0 {
		return // first accepted frame anchors the interval
	}
	s := p.Stats()
	p.logger.Debug("pipeline.stats",
		"session", s.SessionID,
		"frames_in", s.FramesIn,
		"accepted", s.Accepted,
		"skipped_gate", s.SkippedGate,
		"converted", s.Converted,
		"detector_errors", s.DetectorErrors,
		"avg_convert", s.AvgConvert,
	)
}

func (p *Pipeline) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
