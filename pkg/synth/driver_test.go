package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lectern/pkg/model"
	"lectern/pkg/textprep"
)

// fakeEngine answers each chunk with a deterministic payload and can
// be told to fail specific texts.
type fakeEngine struct {
	mu       sync.Mutex
	calls    map[string]int
	failFor  map[string]int // Text -> number of failures before success; -1 = always
	failErr  error
	settings model.SynthesisSettings
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		calls:   make(map[string]int),
		failFor: make(map[string]int),
		failErr: errors.New("engine unavailable"),
	}
}

func (f *fakeEngine) Synthesize(_ context.Context, text, voiceID, modelID string, settings model.SynthesisSettings) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[text]++
	f.settings = settings

	remaining, ok := f.failFor[text]
	if ok && (remaining == -1 || f.calls[text] <= remaining) {
		return nil, f.failErr
	}
	return audioFor(text), nil
}

func audioFor(text string) []byte {
	return []byte(fmt.Sprintf("<audio:%s>", text))
}

func chunksOf(texts ...string) []textprep.Chunk {
	chunks := make([]textprep.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = textprep.Chunk{Index: i, Text: t}
	}
	return chunks
}

func TestSynthesizeConcatenatesInOrder(t *testing.T) {
	engine := newFakeEngine()
	d := NewDriver(engine, 0, 0, 1)

	chunks := chunksOf(
		"the first part of the lecture",
		"the second part of the lecture",
		"the third part of the lecture",
	)

	audio, err := d.Synthesize(context.Background(), chunks, "v1", "m1", model.SynthesisSettings{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	want := bytes.Join([][]byte{
		audioFor(chunks[0].Text),
		audioFor(chunks[1].Text),
		audioFor(chunks[2].Text),
	}, nil)
	if !bytes.Equal(audio, want) {
		t.Errorf("concatenation mismatch:\n got %q\nwant %q", audio, want)
	}
}

func TestSynthesizeParallelMatchesSequential(t *testing.T) {
	texts := make([]string, 9)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d with content", i)
	}

	seq, err := NewDriver(newFakeEngine(), 0, 0, 1).
		Synthesize(context.Background(), chunksOf(texts...), "v1", "m1", model.SynthesisSettings{})
	if err != nil {
		t.Fatal(err)
	}

	par, err := NewDriver(newFakeEngine(), 0, 0, 4).
		Synthesize(context.Background(), chunksOf(texts...), "v1", "m1", model.SynthesisSettings{})
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(seq, par) {
		t.Error("parallel output differs from sequential output")
	}
}

// A chunk that keeps failing aborts the whole batch with a typed error
// carrying the chunk index; no partial audio escapes.
func TestSynthesizeChunkFailure(t *testing.T) {
	engine := newFakeEngine()
	failing := "the doomed third chunk here"
	engine.failFor[failing] = -1

	d := NewDriver(engine, 2, 0, 1)
	chunks := chunksOf(
		"chunk zero converts fine",
		"chunk one converts fine",
		failing,
		"chunk three never reached",
	)

	audio, err := d.Synthesize(context.Background(), chunks, "v1", "m1", model.SynthesisSettings{})
	if err == nil {
		t.Fatal("expected failure")
	}
	if audio != nil {
		t.Error("partial audio returned on failure")
	}

	var chunkErr *ChunkError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkError, got %T: %v", err, err)
	}
	if chunkErr.Index != 2 {
		t.Errorf("ChunkError.Index = %d, want 2", chunkErr.Index)
	}
	if chunkErr.Attempts != 3 {
		t.Errorf("ChunkError.Attempts = %d, want 3 (1 + 2 retries)", chunkErr.Attempts)
	}
	if !errors.Is(err, engine.failErr) {
		t.Error("underlying engine error not wrapped")
	}

	if engine.calls["chunk three never reached"] != 0 {
		t.Error("sequential driver continued past the failing chunk")
	}
}

func TestSynthesizeRetryThenSucceed(t *testing.T) {
	engine := newFakeEngine()
	flaky := "the flaky second chunk here"
	engine.failFor[flaky] = 1 // One failure, then success

	d := NewDriver(engine, 2, time.Millisecond, 1)
	chunks := chunksOf("the stable first chunk here", flaky)

	audio, err := d.Synthesize(context.Background(), chunks, "v1", "m1", model.SynthesisSettings{})
	if err != nil {
		t.Fatalf("retry did not recover: %v", err)
	}
	if engine.calls[flaky] != 2 {
		t.Errorf("flaky chunk called %d times, want 2", engine.calls[flaky])
	}
	want := bytes.Join([][]byte{audioFor(chunks[0].Text), audioFor(flaky)}, nil)
	if !bytes.Equal(audio, want) {
		t.Error("recovered output incorrect")
	}
}

func TestSynthesizeSkipsInvalidChunks(t *testing.T) {
	engine := newFakeEngine()
	d := NewDriver(engine, 0, 0, 1)

	chunks := []textprep.Chunk{
		{Index: 0, Text: "a perfectly valid chunk"},
		{Index: 1, Text: "um"},      // Under three words
		{Index: 2, Text: "... !!!"}, // No alphanumerics
		{Index: 3, Text: "another valid chunk here"},
	}

	audio, err := d.Synthesize(context.Background(), chunks, "v1", "m1", model.SynthesisSettings{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	want := bytes.Join([][]byte{audioFor(chunks[0].Text), audioFor(chunks[3].Text)}, nil)
	if !bytes.Equal(audio, want) {
		t.Errorf("invalid chunks not skipped cleanly: %q", audio)
	}
	if engine.calls["um"] != 0 || engine.calls["... !!!"] != 0 {
		t.Error("degenerate chunk reached the engine")
	}
}

func TestSynthesizeAllInvalid(t *testing.T) {
	d := NewDriver(newFakeEngine(), 0, 0, 1)
	_, err := d.Synthesize(context.Background(), chunksOf("um", "ah"), "v1", "m1", model.SynthesisSettings{})
	if err == nil {
		t.Fatal("expected error when no chunk is valid")
	}
}

func TestSynthesizeParallelFailure(t *testing.T) {
	engine := newFakeEngine()
	failing := "the doomed middle chunk here"
	engine.failFor[failing] = -1

	texts := []string{
		"chunk zero is long enough",
		"chunk one is long enough",
		failing,
		"chunk three is long enough",
		"chunk four is long enough",
	}

	d := NewDriver(engine, 0, 0, 3)
	audio, err := d.Synthesize(context.Background(), chunksOf(texts...), "v1", "m1", model.SynthesisSettings{})
	if err == nil {
		t.Fatal("expected failure")
	}
	if audio != nil {
		t.Error("partial audio returned on parallel failure")
	}

	var chunkErr *ChunkError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkError, got %T", err)
	}
	if chunkErr.Index != 2 {
		t.Errorf("ChunkError.Index = %d, want 2", chunkErr.Index)
	}
}

func TestSynthesizeSettingsPassthrough(t *testing.T) {
	engine := newFakeEngine()
	d := NewDriver(engine, 0, 0, 1)

	settings := model.SynthesisSettings{Stability: 0.4, SimilarityBoost: 0.8, Style: 0.1}
	_, err := d.Synthesize(context.Background(), chunksOf("a single valid chunk"), "v1", "m1", settings)
	if err != nil {
		t.Fatal(err)
	}
	if engine.settings != settings {
		t.Errorf("settings not passed through: %+v", engine.settings)
	}
}
