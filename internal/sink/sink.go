// Package sink persists finalized run records to an object store, best
// effort. Every failure is logged with enough context to retry by hand
// and then swallowed: persistence is provably unable to affect a result
// that has already been returned to the caller.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lucasnoah/repocrew/internal/contract"
	"github.com/lucasnoah/repocrew/internal/logging"
	"github.com/lucasnoah/repocrew/internal/run"
)

// ObjectStore is the remote store behind the sink.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Sink writes run records asynchronously to an ObjectStore.
type Sink struct {
	store   ObjectStore
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New creates a Sink over the given store. writeTimeout bounds each
// attempt; zero means 30 seconds.
func New(store ObjectStore, writeTimeout time.Duration) *Sink {
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	return &Sink{
		store:   store,
		timeout: writeTimeout,
		logger:  logging.New("sink"),
	}
}

// Write persists a finalized portfolio run and its per-target runs,
// fire-and-forget. It returns immediately; the caller's result is already
// final and cannot be affected by anything that happens here.
func (s *Sink) Write(pf *run.PortfolioRun) {
	if s == nil || s.store == nil || pf == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			// Even a panicking store implementation stays inside this
			// boundary.
			if r := recover(); r != nil {
				s.logger.Error("store panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		s.put(ctx, "portfolios/"+pf.PortfolioRunID+".json", pf)
		for i := range pf.Runs {
			pr := &pf.Runs[i]
			s.put(ctx, "runs/"+pr.RunID+".json", pr)
		}
	}()
}

// WriteRun persists a single pipeline run outside a portfolio.
func (s *Sink) WriteRun(pr *run.PipelineRun) {
	if s == nil || s.store == nil || pr == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("store panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.put(ctx, "runs/"+pr.RunID+".json", pr)
	}()
}

// put serializes one record and writes it, logging and swallowing any
// failure as a StorageWriteError.
func (s *Sink) put(ctx context.Context, key string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("marshal record", "key", key, "error", err)
		return
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		werr := &contract.StorageWriteError{Key: key, Err: err}
		s.logger.Error("result write failed, retry manually",
			"key", key, "bytes", len(data), "error", werr)
	}
}

// Flush waits for all in-flight writes. Used at process shutdown and in
// tests; pipeline callers never need it.
func (s *Sink) Flush() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// NewStore builds an ObjectStore from sink configuration. Backend "none"
// returns nil, which disables persistence.
func NewStore(backend, path, dsn string) (ObjectStore, error) {
	switch backend {
	case "none", "":
		return nil, nil
	case "fs":
		return NewFSStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "postgres":
		return NewPostgresStore(context.Background(), dsn)
	default:
		return nil, fmt.Errorf("unknown sink backend %q", backend)
	}
}
