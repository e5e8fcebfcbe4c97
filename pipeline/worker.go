package pipeline

import (
	"errors"

	"github.com/soocke/framescan-go/domain/frame"
)

// ErrWorkerClosed is returned by Convert after Close.
var ErrWorkerClosed = errors.New("pipeline: conversion worker closed")

type convertResult struct {
	prepared *frame.Prepared
	err      error
}

type convertJob struct {
	raw  *frame.Raw
	done chan convertResult
}

// convertWorker runs pixel-format conversions on a single dedicated
// goroutine so the capture callback is never blocked for the full conversion
// duration. Callers submit and await (fire-and-await); the pipeline gate's
// busy flag keeps at most one job in flight, so there is no queue to manage
// and no mid-conversion cancellation.
type convertWorker struct {
	jobs chan convertJob
	quit chan struct{}
}

func newConvertWorker() *convertWorker {
	w := &convertWorker{
		jobs: make(chan convertJob, 1),
		quit: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *convertWorker) loop() {
	for {
		select {
		case <-w.quit:
			return
		case job := <-w.jobs:
			p, err := frame.ToNV21(job.raw)
			job.done <- convertResult{prepared: p, err: err}
		}
	}
}

// convert submits raw to the worker goroutine and blocks until the NV21
// result is ready. The raw frame stays borrowed for the whole call.
func (w *convertWorker) convert(raw *frame.Raw) (*frame.Prepared, error) {
	done := make(chan convertResult, 1)
	select {
	case w.jobs <- convertJob{raw: raw, done: done}:
	case <-w.quit:
		return nil, ErrWorkerClosed
	}
	select {
	case res := <-done:
		return res.prepared, res.err
	case <-w.quit:
		return nil, ErrWorkerClosed
	}
}

func (w *convertWorker) close() {
	close(w.quit)
}
