package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/framescan-go/capture"
	"github.com/soocke/framescan-go/config"
	"github.com/soocke/framescan-go/debug"
	"github.com/soocke/framescan-go/domain/frame"
	"github.com/soocke/framescan-go/domain/overlay"
	"github.com/soocke/framescan-go/pipeline"
)

func main() {
	cfgPath := flag.String("config", "framescan.json", "path to JSON config file")
	fps := flag.Int("fps", 10, "capture rate of the demo desktop source")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		// Fall back to the defaults Load already returned.
		NewLogger(slog.LevelInfo).Warn("config load", "path", *cfgPath, "error", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	if cfg.Debug {
		debug.StartGoroutineLogger(10*time.Second, logger)
		debug.StartMemLogger(10*time.Second, logger)
	}

	onOverlay := func(rect overlay.RectF, visible bool) {
		if visible {
			logger.Info("overlay", "rect", rect.String())
		} else {
			logger.Info("overlay", "rect", "none")
		}
	}

	pl := pipeline.New(cfg, pipeline.DetectorFunc(demoDetect), onOverlay, logger)
	defer pl.Close()

	interval := time.Second / time.Duration(max(*fps, 1))
	svc := capture.New(logger, func(raw *frame.Raw, rotation int) {
		if res, ok := pl.Process(context.Background(), raw, rotation); ok {
			for _, d := range res.Detections {
				logger.Debug("detection", "value", d.Value)
			}
		}
	}, interval)

	svc.Start()
	logger.Info("framescan started",
		"session", pl.SessionID(),
		"every_nth", cfg.ProcessEveryNthFrame,
		"roi_side", cfg.ROISidePixels,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	svc.Stop()
	stats := pl.Stats()
	logger.Info("framescan stopped",
		"frames_in", stats.FramesIn,
		"accepted", stats.Accepted,
		"skipped_gate", stats.SkippedGate,
	)
}

// demoDetect stands in for the external pattern-detection engine. It decodes
// nothing; it only inspects mean luminance so the demo exercises the full
// prepared-frame contract.
func demoDetect(_ context.Context, p *frame.Prepared, _ int) ([]pipeline.Detection, error) {
	if p == nil || len(p.Data) == 0 {
		return nil, nil
	}
	n := len(p.Data)
	if p.Format == frame.FormatNV21 {
		n = p.Size.X * p.Size.Y // luma region only
	}
	var sum uint64
	step := 1
	if p.Format == frame.FormatPacked4 {
		step = 4 // first channel of each pixel
	}
	count := 0
	for i := 0; i < n && i < len(p.Data); i += step {
		sum += uint64(p.Data[i])
		count++
	}
	if count == 0 {
		return nil, nil
	}
	return []pipeline.Detection{{Value: fmt.Sprintf("mean-luma=%d", sum/uint64(count))}}, nil
}
