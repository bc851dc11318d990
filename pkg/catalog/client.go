// Package catalog implements the client for the external voice catalog
// (an ElevenLabs-style API): paginated voice listing, single-voice
// lookup, and text-to-speech synthesis.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"lectern/pkg/config"
	"lectern/pkg/model"
	"lectern/pkg/request"
)

// MaxPageSize is the catalog's page size cap.
const MaxPageSize = 100

// ErrVoiceNotFound is returned by GetVoice for unknown voice ids.
var ErrVoiceNotFound = errors.New("voice not found in catalog")

// Client talks to the voice catalog.
type Client struct {
	baseURL   string
	streamURL string
	apiKey    string
	pageSize  int
	request   *request.Client
}

// NewClient creates a catalog client on top of the shared request layer.
func NewClient(cfg config.CatalogConfig, rc *request.Client) *Client {
	pageSize := cfg.PageSize
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		streamURL: cfg.StreamURL,
		apiKey:    cfg.Key,
		pageSize:  pageSize,
		request:   rc,
	}
}

func (c *Client) headers(contentType string) map[string]string {
	h := map[string]string{"xi-api-key": c.apiKey}
	if contentType != "" {
		h["Content-Type"] = contentType
	}
	return h
}

// ListVoices fetches one page of shared voices matching the filters.
// Page numbering starts at 0.
func (c *Client) ListVoices(ctx context.Context, filters Filters, page int) (voices []*model.VoiceRecord, hasMore bool, err error) {
	q := filters.Values()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.pageSize))

	u := fmt.Sprintf("%s/shared-voices?%s", c.baseURL, q.Encode())
	body, err := c.request.Get(ctx, u, c.headers(""))
	if err != nil {
		return nil, false, fmt.Errorf("catalog listing failed: %w", err)
	}

	var result listResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode voice listing: %w", err)
	}

	now := time.Now()
	voices = make([]*model.VoiceRecord, 0, len(result.Voices))
	for _, raw := range result.Voices {
		voices = append(voices, raw.toRecord(now))
	}
	return voices, result.HasMore, nil
}

// ListAllVoices follows has_more paging until the catalog is exhausted
// or maxPages is reached. Catalog order is preserved.
func (c *Client) ListAllVoices(ctx context.Context, filters Filters, maxPages int) ([]*model.VoiceRecord, error) {
	var all []*model.VoiceRecord
	for page := 0; page < maxPages; page++ {
		voices, hasMore, err := c.ListVoices(ctx, filters, page)
		if err != nil {
			return nil, err
		}
		all = append(all, voices...)
		if !hasMore {
			break
		}
	}
	return all, nil
}

// GetVoice fetches a single voice by id. Returns ErrVoiceNotFound when
// the catalog does not know the id.
func (c *Client) GetVoice(ctx context.Context, voiceID string) (*model.VoiceRecord, error) {
	u := fmt.Sprintf("%s/voices/%s", c.baseURL, voiceID)
	body, err := c.request.Get(ctx, u, c.headers(""))
	if err != nil {
		var se *request.StatusError
		if errors.As(err, &se) && se.StatusCode == 404 {
			return nil, ErrVoiceNotFound
		}
		return nil, fmt.Errorf("catalog voice lookup failed: %w", err)
	}

	var raw voiceRaw
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode voice: %w", err)
	}
	if raw.VoiceID == "" {
		return nil, ErrVoiceNotFound
	}
	return raw.toRecord(time.Now()), nil
}

// FetchPreview downloads a voice's preview sample. Preview URLs are
// absolute and unauthenticated but still go through the shared request
// queue so they respect the provider rate budget.
func (c *Client) FetchPreview(ctx context.Context, previewURL string) ([]byte, error) {
	audio, err := c.request.Get(ctx, previewURL, nil)
	if err != nil {
		return nil, fmt.Errorf("preview fetch failed: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("received empty preview audio")
	}
	return audio, nil
}

// Synthesize converts one chunk of text into audio bytes.
func (c *Client) Synthesize(ctx context.Context, text, voiceID, modelID string, settings model.SynthesisSettings) ([]byte, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("voice ID is required")
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:          text,
		ModelID:       modelID,
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	u := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	audio, err := c.request.Post(ctx, u, payload, c.headers("application/json"))
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("received empty audio from catalog")
	}
	return audio, nil
}
