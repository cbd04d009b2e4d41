package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxClipBytes bounds one synthesized WAV response.
const maxClipBytes = 64 << 20

// Coqui talks to a Coqui TTS server (GET /api/tts).
type Coqui struct {
	baseURL string
	client  *http.Client
}

func NewCoqui(baseURL string) *Coqui {
	return &Coqui{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{}}
}

// Available checks that the server answers on its root page.
func (c *Coqui) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("tts server returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Coqui) Synthesize(ctx context.Context, sr SynthesisRequest) (Clip, error) {
	q := url.Values{}
	q.Set("text", sr.Text)
	if sr.Lang != "" {
		q.Set("language_id", sr.Lang)
	}
	if sr.Speaker != "" {
		q.Set("speaker_id", sr.Speaker)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return Clip{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Clip{}, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
	if err != nil {
		return Clip{}, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(data) > 256 {
			data = data[:256]
		}
		return Clip{}, fmt.Errorf("tts server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	clip, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("tts response: %w", err)
	}
	if len(clip.Samples) == 0 {
		return Clip{}, fmt.Errorf("tts returned an empty clip")
	}
	return clip, nil
}
