package hub

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/niahub/voicecli/pkg/errorsx"
	"github.com/niahub/voicecli/pkg/resilience"
)

const (
	shortCallTimeout = 10 * time.Second
	chunkSize        = 4096

	breakerThreshold = 3
	breakerCooldown  = 15 * time.Second
)

// Options configures the HTTP hub client.
type Options struct {
	BaseURL string
	APIKey  string
	// CertPath optionally pins the hub's TLS certificate. Without it the
	// hub's (typically self-signed) certificate is not verified.
	CertPath string
	Room     string
	Logger   *slog.Logger
}

// HTTPClient implements Client over the hub's HTTP API. Reply audio is
// streamed in the response body; the transcript and reply text travel as
// percent-encoded response headers so they are available regardless of
// how much of the audio the client consumes.
type HTTPClient struct {
	baseURL string
	apiKey  string
	room    string
	pinned  bool
	http    *http.Client
	logger  *slog.Logger
	// breaker trips the per-turn calls after consecutive hub failures so
	// the user gets an immediate notice instead of a timeout per turn.
	breaker *resilience.Breaker

	deviceConfig DeviceConfig
	aiConfig     AIConfig
	systemCtx    string
}

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("hub base URL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: true}
	pinned := false
	if opts.CertPath != "" {
		pem, err := os.ReadFile(opts.CertPath)
		if err != nil {
			return nil, fmt.Errorf("read hub cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("hub cert %s contains no usable certificates", opts.CertPath)
		}
		tlsCfg = &tls.Config{RootCAs: pool}
		pinned = true
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		room:    opts.Room,
		pinned:  pinned,
		logger:  logger,
		breaker: resilience.NewBreaker(breakerThreshold, breakerCooldown),
		// No global timeout: the voice call streams for as long as the hub
		// keeps talking. Short calls bound themselves via context.
		http: &http.Client{Transport: &http.Transport{TLSClientConfig: tlsCfg}},
	}, nil
}

// Pinned reports whether the hub certificate is verified against a
// pinned PEM.
func (c *HTTPClient) Pinned() bool { return c.pinned }

// ConnectWithRetry fetches the hub's tool list, retrying transient
// failures, and returns the tool count.
func (c *HTTPClient) ConnectWithRetry(ctx context.Context, maxRetries int) (int, error) {
	policy := resilience.NewRetryPolicy(maxRetries, time.Second)
	var count int
	err := policy.DoWithContext(ctx, func() error {
		var payload struct {
			Tools []json.RawMessage `json:"tools"`
		}
		if err := c.getJSON(ctx, "/api/tools", &payload); err != nil {
			c.logger.Debug("hub connect attempt failed", "error", err)
			return err
		}
		count = len(payload.Tools)
		return nil
	})
	if err != nil {
		return 0, errorsx.Wrap(err, errorsx.ReasonHubConnect)
	}
	return count, nil
}

func (c *HTTPClient) FetchDeviceConfig(ctx context.Context) (DeviceConfig, error) {
	var raw map[string]any
	if err := c.getJSON(ctx, "/api/config/device", &raw); err != nil {
		return DeviceConfig{}, errorsx.Wrap(err, errorsx.ReasonHubConfig)
	}
	var cfg DeviceConfig
	if err := decodeSettings(raw, &cfg); err != nil {
		return DeviceConfig{}, errorsx.Wrap(err, errorsx.ReasonHubConfig)
	}
	c.deviceConfig = cfg
	return cfg, nil
}

func (c *HTTPClient) FetchAIConfig(ctx context.Context) (AIConfig, error) {
	var raw map[string]any
	if err := c.getJSON(ctx, "/api/config/ai", &raw); err != nil {
		return AIConfig{}, errorsx.Wrap(err, errorsx.ReasonHubConfig)
	}
	var cfg AIConfig
	if err := decodeSettings(raw, &cfg); err != nil {
		return AIConfig{}, errorsx.Wrap(err, errorsx.ReasonHubConfig)
	}
	c.aiConfig = cfg
	return cfg, nil
}

func (c *HTTPClient) FetchSystemContext(ctx context.Context) (string, error) {
	var payload struct {
		Context string `json:"context"`
	}
	if err := c.getJSON(ctx, "/api/context", &payload); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonHubConfig)
	}
	c.systemCtx = payload.Context
	return payload.Context, nil
}

func (c *HTTPClient) ResetConversation(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	if err := c.postJSON(ctx, "/api/reset", body, nil); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonHubReset)
	}
	return nil
}

// VoicePipeline posts the WAV capture and streams the MP3 reply. The
// returned stream finishes once the hub closes the response body.
func (c *HTTPClient) VoicePipeline(ctx context.Context, wav []byte, sessionID string) (*VoiceStream, error) {
	if !c.breaker.Allow() {
		return nil, errorsx.Wrap(fmt.Errorf("hub unavailable: %w", resilience.ErrSuspended), errorsx.ReasonHubVoice)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/voice", bytes.NewReader(wav))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonHubVoice)
	}
	req.Header.Set("Content-Type", "audio/wav")
	c.setCommonHeaders(req, sessionID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.OnFailure()
		return nil, errorsx.Wrap(err, errorsx.ReasonHubVoice)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		c.breaker.OnFailure()
		return nil, errorsx.Wrap(httpError(resp), errorsx.ReasonHubVoice)
	}
	c.breaker.OnSuccess()

	result := VoiceResult{
		Transcript: headerText(resp, "X-Transcript"),
		Reply:      headerText(resp, "X-Reply"),
	}

	stream := NewVoiceStream()
	go func() {
		defer resp.Body.Close()
		buf := make([]byte, chunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				stream.Emit(chunk)
			}
			if err == io.EOF {
				stream.Finish(result, nil)
				return
			}
			if err != nil {
				stream.Finish(result, errorsx.Wrap(err, errorsx.ReasonHubVoice))
				return
			}
		}
	}()
	return stream, nil
}

func (c *HTTPClient) Chat(ctx context.Context, text, sessionID string) (string, error) {
	if !c.breaker.Allow() {
		return "", errorsx.Wrap(fmt.Errorf("hub unavailable: %w", resilience.ErrSuspended), errorsx.ReasonHubChat)
	}
	body := map[string]string{"text": text, "session_id": sessionID}
	var payload struct {
		Reply string `json:"reply"`
	}
	if err := c.postJSON(ctx, "/api/chat", body, &payload); err != nil {
		c.breaker.OnFailure()
		return "", errorsx.Wrap(err, errorsx.ReasonHubChat)
	}
	c.breaker.OnSuccess()
	return payload.Reply, nil
}

func (c *HTTPClient) setCommonHeaders(req *http.Request, sessionID string) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.room != "" {
		req.Header.Set("X-Room", c.room)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, shortCallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setCommonHeaders(req, "")
	return c.doJSON(req, out)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, shortCallTimeout)
	defer cancel()
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(req, "")
	return c.doJSON(req, out)
}

func (c *HTTPClient) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func httpError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("hub returned %d: %s", resp.StatusCode, msg)
}

// headerText decodes a percent-encoded text header. The hub escapes
// transcript/reply text so non-ASCII survives the header encoding.
func headerText(resp *http.Response, name string) string {
	raw := resp.Header.Get(name)
	if raw == "" {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
