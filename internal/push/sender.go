package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/noorapp/noor/internal/model"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second
)

// Header names for gateway requests.
const (
	HeaderSignature  = "X-Noor-Signature"
	HeaderTimestamp  = "X-Noor-Timestamp"
	HeaderDeliveryID = "X-Noor-Delivery-Id"
)

// ErrTokenUnregistered is returned when the gateway reports that a token
// no longer exists. The token is disabled and never retried.
var ErrTokenUnregistered = errors.New("push token unregistered")

// Message is one notification addressed to one device token.
type Message struct {
	DeliveryID     string         `json:"delivery_id"`
	NotificationID string         `json:"notification_id"`
	Token          string         `json:"token"`
	Platform       model.Platform `json:"platform"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	ImageURL       *string        `json:"image_url,omitempty"`
	DeepLink       *string        `json:"deep_link,omitempty"`
}

// Sender hands a message to the delivery network. It returns the HTTP
// status observed (0 when no response was received).
type Sender interface {
	Send(ctx context.Context, msg *Message) (int, error)
}

// NewHTTPClient creates an HTTP client configured for gateway delivery.
// It does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// GatewayClient posts signed messages to the push gateway.
type GatewayClient struct {
	url     string
	secret  string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *GatewayClient) { g.client = c }
}

// NewGatewayClient creates a gateway sender limited to ratePerSecond
// requests per second. A non-positive rate disables limiting.
func NewGatewayClient(url, secret string, ratePerSecond int, opts ...GatewayOption) *GatewayClient {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = ratePerSecond
	}
	g := &GatewayClient{
		url:     url,
		secret:  secret,
		client:  NewHTTPClient(),
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send implements Sender.
func (g *GatewayClient) Send(ctx context.Context, msg *Message) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	timestamp := g.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Noor-Push/1.0")
	req.Header.Set(HeaderSignature, GenerateSignature(g.secret, timestamp, body))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderDeliveryID, msg.DeliveryID)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return resp.StatusCode, ErrTokenUnregistered
	default:
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}

// LogSender logs messages instead of delivering them. It is used when no
// gateway is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "push.log_sender")}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg *Message) (int, error) {
	s.logger.Info("push message",
		"delivery_id", msg.DeliveryID,
		"notification_id", msg.NotificationID,
		"platform", msg.Platform,
		"title", msg.Title,
	)
	return http.StatusOK, nil
}
