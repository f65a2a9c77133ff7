// Package notify pkg/notify/gateway.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	errGatewayDisabled = fmt.Errorf("messaging gateway is disabled")
	errGatewayCooldown = fmt.Errorf("recipient is within cooldown period")
	errGatewayStatus   = fmt.Errorf("gateway returned non-200 status")
	errGatewayThrottle = fmt.Errorf("gateway rate limit exceeded")
)

// GatewayConfig configures the HTTP messaging gateway.
type GatewayConfig struct {
	Enabled  bool          `json:"enabled"`
	VoiceURL string        `json:"voice_url"`
	TextURL  string        `json:"text_url"`
	Headers  []Header      `json:"headers,omitempty"`  // Custom headers
	Cooldown time.Duration `json:"cooldown,omitempty"` // Per-recipient
	RatePerS float64       `json:"rate_per_second,omitempty"`
}

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (c *GatewayConfig) UnmarshalJSON(data []byte) error {
	type Alias GatewayConfig

	aux := &struct {
		Cooldown string `json:"cooldown"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Cooldown != "" {
		duration, err := time.ParseDuration(aux.Cooldown)
		if err != nil {
			return fmt.Errorf("invalid cooldown format: %w", err)
		}

		c.Cooldown = duration
	}

	return nil
}

// HTTPGateway posts voice and text requests to webhook endpoints. One
// attempt per call; the dispatcher owns retry policy (there is none).
type HTTPGateway struct {
	config        GatewayConfig
	client        *http.Client
	limiter       *rate.Limiter
	lastSendTimes map[string]time.Time
	mu            sync.Mutex
	bufferPool    *sync.Pool
}

// NewHTTPGateway creates a gateway from config.
func NewHTTPGateway(config GatewayConfig) *HTTPGateway {
	perSecond := config.RatePerS
	if perSecond <= 0 {
		perSecond = 5
	}

	// Burst must cover at least one second of sends: a single critical
	// event fans out to both the user and the centre back to back.
	burst := int(math.Ceil(perSecond))
	if burst < 1 {
		burst = 1
	}

	return &HTTPGateway{
		config: config,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:       rate.NewLimiter(rate.Limit(perSecond), burst),
		lastSendTimes: make(map[string]time.Time),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// IsEnabled returns whether the gateway is enabled.
func (g *HTTPGateway) IsEnabled() bool {
	return g.config.Enabled
}

// SendVoice places a voice call via the configured endpoint.
func (g *HTTPGateway) SendVoice(ctx context.Context, recipient, message string) error {
	return g.send(ctx, g.config.VoiceURL, recipient, message)
}

// SendText sends a text message via the configured endpoint.
func (g *HTTPGateway) SendText(ctx context.Context, recipient, message string) error {
	return g.send(ctx, g.config.TextURL, recipient, message)
}

func (g *HTTPGateway) send(ctx context.Context, url, recipient, message string) error {
	if !g.IsEnabled() {
		log.Printf("Messaging gateway disabled, skipping send to %s", recipient)
		return errGatewayDisabled
	}

	if err := g.checkCooldown(recipient); err != nil {
		return err
	}

	if !g.limiter.Allow() {
		return errGatewayThrottle
	}

	payload, err := g.preparePayload(recipient, message)
	if err != nil {
		return fmt.Errorf("failed to prepare payload: %w", err)
	}

	return g.sendRequest(ctx, url, payload)
}

func (g *HTTPGateway) checkCooldown(recipient string) error {
	if g.config.Cooldown <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	lastSend, exists := g.lastSendTimes[recipient]
	if exists && time.Since(lastSend) < g.config.Cooldown {
		log.Printf("Recipient %s is within cooldown period, skipping", recipient)
		return errGatewayCooldown
	}

	g.lastSendTimes[recipient] = time.Now()

	return nil
}

func (g *HTTPGateway) preparePayload(recipient, message string) ([]byte, error) {
	buf := g.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer g.bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(map[string]string{
		"to":      recipient,
		"message": message,
	}); err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func (g *HTTPGateway) sendRequest(ctx context.Context, url string, payload []byte) error {
	buf := g.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer g.bufferPool.Put(buf)

	buf.Write(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	g.setHeaders(req)

	resp, err := g.client.Do(req) //nolint:bodyclose // Response body is closed later
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBuf := g.bufferPool.Get().(*bytes.Buffer)
		errBuf.Reset()
		defer g.bufferPool.Put(errBuf)

		_, _ = io.Copy(errBuf, resp.Body)

		return fmt.Errorf("%w: status=%d body=%s", errGatewayStatus, resp.StatusCode, errBuf.String())
	}

	return nil
}

func (g *HTTPGateway) setHeaders(req *http.Request) {
	hasContentType := false

	for _, header := range g.config.Headers {
		if strings.EqualFold(header.Key, "content-type") {
			hasContentType = true
		}

		req.Header.Set(header.Key, header.Value)
	}

	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
}
