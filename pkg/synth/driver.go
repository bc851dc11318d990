// Package synth converts prepared chunks into one audio artifact.
// Chunks are independent units of work but the final artifact is an
// order-preserving raw byte join, so parallel conversion re-sorts
// segments into original index order before concatenation. The joined
// format must itself be streamable (MPEG frames are); the driver does
// not validate that assumption.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lectern/pkg/model"
	"lectern/pkg/textprep"
)

// Synthesizer is the single synthesis call the driver depends on.
// Both the catalog HTTP client and its streaming variant satisfy it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, modelID string, settings model.SynthesisSettings) ([]byte, error)
}

// ChunkError reports which chunk exhausted its retry budget and why.
type ChunkError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("synthesis of chunk %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Driver runs the chunk conversion loop.
type Driver struct {
	engine      Synthesizer
	retries     int           // Attempts beyond the first
	retryDelay  time.Duration // Fixed sleep between attempts
	concurrency int           // 1 = strictly sequential
}

// NewDriver creates a Driver. Concurrency below 1 is clamped to 1.
func NewDriver(engine Synthesizer, retries int, retryDelay time.Duration, concurrency int) *Driver {
	if concurrency < 1 {
		concurrency = 1
	}
	if retries < 0 {
		retries = 0
	}
	return &Driver{
		engine:      engine,
		retries:     retries,
		retryDelay:  retryDelay,
		concurrency: concurrency,
	}
}

// Synthesize converts all chunks and returns the joined audio bytes.
// Invalid chunks are skipped with a log line. Any chunk that exhausts
// its retries aborts the whole batch: no partial audio is returned.
func (d *Driver) Synthesize(ctx context.Context, chunks []textprep.Chunk, voiceID, modelID string, settings model.SynthesisSettings) ([]byte, error) {
	valid := make([]textprep.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.Valid() {
			slog.Warn("Skipping degenerate chunk", "index", c.Index, "len", len(c.Text))
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid chunks to synthesize")
	}

	var segments [][]byte
	var err error
	if d.concurrency > 1 && len(valid) > 1 {
		segments, err = d.convertParallel(ctx, valid, voiceID, modelID, settings)
	} else {
		segments, err = d.convertSequential(ctx, valid, voiceID, modelID, settings)
	}
	if err != nil {
		return nil, err
	}

	return bytes.Join(segments, nil), nil
}

func (d *Driver) convertSequential(ctx context.Context, chunks []textprep.Chunk, voiceID, modelID string, settings model.SynthesisSettings) ([][]byte, error) {
	segments := make([][]byte, len(chunks))
	for i, c := range chunks {
		audio, err := d.convertChunk(ctx, c, voiceID, modelID, settings)
		if err != nil {
			return nil, err
		}
		segments[i] = audio
	}
	return segments, nil
}

// convertParallel fans chunk conversions out over a bounded worker
// pool. Segments land in their original slot, so the caller's join
// stays byte-identical to the sequential path.
func (d *Driver) convertParallel(ctx context.Context, chunks []textprep.Chunk, voiceID, modelID string, settings model.SynthesisSettings) ([][]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	segments := make([][]byte, len(chunks))
	sem := make(chan struct{}, d.concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, c := range chunks {
		wg.Add(1)
		go func(slot int, chunk textprep.Chunk) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			audio, err := d.convertChunk(ctx, chunk, voiceID, modelID, settings)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel() // Abort remaining work; no partial audio is returned
				return
			}
			segments[slot] = audio
		}(i, c)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

// convertChunk runs one chunk through the engine with bounded retries
// and a fixed sleep between attempts.
func (d *Driver) convertChunk(ctx context.Context, chunk textprep.Chunk, voiceID, modelID string, settings model.SynthesisSettings) ([]byte, error) {
	attempts := d.retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			slog.Warn("Retrying chunk", "index", chunk.Index, "attempt", attempt, "of", attempts, "error", lastErr)
			select {
			case <-time.After(d.retryDelay):
			case <-ctx.Done():
				return nil, &ChunkError{Index: chunk.Index, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		audio, err := d.engine.Synthesize(ctx, chunk.Text, voiceID, modelID, settings)
		if err == nil {
			slog.Debug("Chunk converted", "index", chunk.Index, "bytes", len(audio))
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, &ChunkError{Index: chunk.Index, Attempts: attempt, Err: ctx.Err()}
		}
		lastErr = err
	}

	return nil, &ChunkError{Index: chunk.Index, Attempts: attempts, Err: lastErr}
}
