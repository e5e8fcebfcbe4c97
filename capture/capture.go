// Package capture provides a desktop frame source for running the
// preparation pipeline without camera hardware. It grabs screen captures at
// a fixed cadence and delivers them as packed 4-byte raw frames.
package capture

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"

	"github.com/soocke/framescan-go/domain/frame"
)

const statsLogInterval = 5 * time.Second

// ProcessFunc consumes one raw frame. The frame and its plane data are
// borrowed for the duration of the call only.
type ProcessFunc func(raw *frame.Raw, rotationDegrees int)

// Service grabs desktop frames and feeds them to a ProcessFunc. Use New to
// construct an instance; Start/Stop control the grab loop.
type Service struct {
	running  atomic.Bool
	logger   *slog.Logger
	process  ProcessFunc
	interval time.Duration

	captures   atomic.Uint64
	failures   atomic.Uint64
	grabNanos  atomic.Uint64
	lastStatAt atomic.Int64
}

// Stats summarises grab loop behaviour.
type Stats struct {
	Captures uint64
	Failures uint64
	AvgGrab  time.Duration
}

// New builds a capture service delivering one frame per interval.
func New(logger *slog.Logger, process ProcessFunc, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Service{logger: logger, process: process, interval: interval}
}

// Start launches the grab loop. No-op when already running.
func (s *Service) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	go s.loop()
}

// Stop signals the grab loop to exit after the current frame.
func (s *Service) Stop() {
	s.running.Store(false)
}

// Running reports whether the grab loop is active.
func (s *Service) Running() bool { return s.running.Load() }

// Stats returns a snapshot of grab counters.
func (s *Service) Stats() Stats {
	captures := s.captures.Load()
	var avg time.Duration
	if total := s.grabNanos.Load(); captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
	}
	return Stats{Captures: captures, Failures: s.failures.Load(), AvgGrab: avg}
}

func (s *Service) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for s.running.Load() {
		<-ticker.C
		start := time.Now()
		img, err := screenshot.CaptureScreen()
		if err != nil {
			s.failures.Add(1)
			if s.logger != nil {
				s.logger.Error("capture screen", "error", err)
			}
			continue
		}
		s.grabNanos.Add(uint64(time.Since(start).Nanoseconds()))
		s.captures.Add(1)
		if s.process != nil {
			s.process(wrapRGBA(img), 0)
		}
		s.maybeLogStats()
	}
}

// wrapRGBA adapts a screen grab into a single-plane packed raw frame. The
// plane aliases the image's pixel buffer; it stays valid only for the
// process call, matching the raw-frame borrow contract.
func wrapRGBA(img *image.RGBA) *frame.Raw {
	b := img.Bounds()
	return &frame.Raw{
		Layout: frame.LayoutPacked4,
		Width:  b.Dx(),
		Height: b.Dy(),
		Planes: []frame.Plane{{
			Data:        img.Pix,
			RowStride:   img.Stride,
			PixelStride: 4,
		}},
	}
}

func (s *Service) maybeLogStats() {
	if s.logger == nil {
		return
	}
	now := time.Now().UnixNano()
	last := s.lastStatAt.Load()
	if last != 0 && time.Duration(now-last) < statsLogInterval {
		return
	}
	if !s.lastStatAt.CompareAndSwap(last, now) || last == 0 {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"failures", stats.Failures,
		"avg_grab", stats.AvgGrab,
	)
}
