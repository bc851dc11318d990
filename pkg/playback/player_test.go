package playback

import (
	"io"
	"testing"
)

func TestSetVolumeClamped(t *testing.T) {
	p := New()

	p.SetVolume(1.5)
	if p.volume != 1.0 {
		t.Errorf("volume not clamped high: %f", p.volume)
	}

	p.SetVolume(-0.2)
	if p.volume != 0 {
		t.Errorf("volume not clamped low: %f", p.volume)
	}
}

func TestVolumeToPower(t *testing.T) {
	if got := volumeToPower(1.0); got != 0 {
		t.Errorf("full volume should map to power 0, got %f", got)
	}
	if got := volumeToPower(0.005); got != -10 {
		t.Errorf("near-zero volume should map to -10, got %f", got)
	}
	if got := volumeToPower(0.5); got >= 0 {
		t.Errorf("half volume should attenuate, got %f", got)
	}
}

func TestPlayEmptyAudio(t *testing.T) {
	p := New()
	if err := p.Play(nil); err == nil {
		t.Fatal("empty buffer must be an error")
	}
}

func TestDecodeStreamerGarbage(t *testing.T) {
	if _, _, err := decodeStreamer([]byte("not audio at all")); err == nil {
		t.Fatal("garbage bytes must fail to decode")
	}
}

func TestNopSeekCloser(t *testing.T) {
	var _ io.ReadSeekCloser = nopSeekCloser{}
	if err := (nopSeekCloser{}).Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}
