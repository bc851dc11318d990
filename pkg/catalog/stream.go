package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lectern/pkg/model"
)

// streamInit is the first message of a streaming session. It carries
// authentication and voice settings.
type streamInit struct {
	Text          string                  `json:"text"` // Must be a single space
	VoiceSettings model.SynthesisSettings `json:"voice_settings"`
	APIKey        string                  `json:"xi_api_key"`
}

type streamText struct {
	Text string `json:"text"`
	// Flush forces generation of buffered text.
	Flush bool `json:"flush,omitempty"`
}

type streamFrame struct {
	Audio   string `json:"audio"` // Base64 MPEG frames
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamEngine adapts the websocket path to the same Synthesize shape
// as the HTTP client, so the synthesis driver can use either.
type StreamEngine struct {
	client *Client
}

// Streaming returns the websocket-backed synthesis engine.
func (c *Client) Streaming() *StreamEngine {
	return &StreamEngine{client: c}
}

// Synthesize converts one chunk over a dedicated websocket session.
func (s *StreamEngine) Synthesize(ctx context.Context, text, voiceID, modelID string, settings model.SynthesisSettings) ([]byte, error) {
	return s.client.SynthesizeStream(ctx, text, voiceID, modelID, settings)
}

// SynthesizeStream converts text into audio over a websocket session.
// The text is sent as-is in one message; the catalog streams audio
// frames back until it marks the session final. Used for long lectures
// where the HTTP endpoint's request size limit would force tiny chunks.
func (c *Client) SynthesizeStream(ctx context.Context, text, voiceID, modelID string, settings model.SynthesisSettings) ([]byte, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("voice ID is required")
	}

	u := fmt.Sprintf("%s/text-to-speech/%s/stream-input?model_id=%s", c.streamURL, voiceID, modelID)

	header := http.Header{}
	requestID := uuid.New().String()
	header.Set("X-Request-Id", requestID)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u, header)
	if err != nil {
		return nil, fmt.Errorf("stream dial failed: %w", err)
	}
	defer conn.Close()

	if err := c.sendStreamSession(conn, text, settings); err != nil {
		return nil, err
	}

	return c.consumeStream(ctx, conn, requestID)
}

// sendStreamSession writes the init, text, and end-of-input messages.
func (c *Client) sendStreamSession(conn *websocket.Conn, text string, settings model.SynthesisSettings) error {
	init := streamInit{Text: " ", VoiceSettings: settings, APIKey: c.apiKey}
	if err := conn.WriteJSON(init); err != nil {
		return fmt.Errorf("stream init failed: %w", err)
	}

	if err := conn.WriteJSON(streamText{Text: text, Flush: true}); err != nil {
		return fmt.Errorf("stream write failed: %w", err)
	}

	// Empty text closes the input side of the session.
	if err := conn.WriteJSON(streamText{Text: ""}); err != nil {
		return fmt.Errorf("stream close failed: %w", err)
	}
	return nil
}

// consumeStream collects audio frames until the final marker.
func (c *Client) consumeStream(ctx context.Context, conn *websocket.Conn, requestID string) ([]byte, error) {
	var audio []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetReadDeadline(deadline)
		} else {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}

		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return nil, fmt.Errorf("stream read failed: %w", err)
		}

		if frame.Error != "" {
			return nil, fmt.Errorf("stream error from catalog: %s (%s)", frame.Error, frame.Message)
		}

		if frame.Audio != "" {
			segment, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				return nil, fmt.Errorf("failed to decode audio frame: %w", err)
			}
			audio = append(audio, segment...)
		}

		if frame.IsFinal {
			break
		}
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("stream produced no audio")
	}

	slog.Debug("Stream session complete", "request_id", requestID, "bytes", len(audio))
	return audio, nil
}
