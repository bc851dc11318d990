// Package playback provides local audio preview for synthesized
// narration and catalog voice samples.
package playback

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// Player plays audio byte buffers through the default output device.
type Player struct {
	mu                 sync.Mutex
	volume             float64
	speakerInitialized bool
	sampleRate         beep.SampleRate
}

// New creates a Player at full volume.
func New() *Player {
	return &Player{volume: 1.0}
}

// SetVolume sets playback volume (0.0 to 1.0).
func (p *Player) SetVolume(vol float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	p.volume = vol
}

// Play decodes the audio bytes and blocks until playback completes.
func (p *Player) Play(audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(audio) == 0 {
		return fmt.Errorf("no audio to play")
	}

	streamer, format, err := decodeStreamer(audio)
	if err != nil {
		return err
	}
	defer streamer.Close()

	if err := p.ensureSpeakerInitialized(); err != nil {
		return err
	}

	resampled := beep.Resample(3, format.SampleRate, p.sampleRate, streamer)
	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(p.volume),
		Silent:   p.volume <= 0.01,
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(volStreamer, beep.Callback(func() {
		close(done)
	})))

	slog.Debug("Playing audio", "bytes", len(audio), "duration", format.SampleRate.D(streamer.Len()))
	<-done
	return nil
}

func (p *Player) ensureSpeakerInitialized() error {
	const targetSampleRate = 48000
	if !p.speakerInitialized {
		err := speaker.Init(beep.SampleRate(targetSampleRate), beep.SampleRate(targetSampleRate).N(time.Second/10))
		if err != nil {
			slog.Error("Failed to initialize speaker", "error", err)
			return err
		}
		p.speakerInitialized = true
		p.sampleRate = beep.SampleRate(targetSampleRate)
	}
	return nil
}

// volumeToPower maps a 0-1 linear volume to beep's base-2 power scale.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return (vol - 1.0) * 5.0
}

func decodeStreamer(audio []byte) (beep.StreamSeekCloser, beep.Format, error) {
	// Synthesis output is MPEG; fall back to WAV for local samples.
	streamer, format, err := mp3.Decode(nopSeekCloser{bytes.NewReader(audio)})
	if err == nil {
		return streamer, format, nil
	}

	streamer, format, err = wav.Decode(nopSeekCloser{bytes.NewReader(audio)})
	if err != nil {
		slog.Error("Failed to decode audio buffer", "error", err)
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

var _ io.ReadSeekCloser = nopSeekCloser{}
