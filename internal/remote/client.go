package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// ErrUnavailable means the remote could not be reached or failed internally
var ErrUnavailable = errors.New("remote unavailable")

// StatusError is a 4xx answer from the remote
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Options configures a Client
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is the maximum requests per second; 0 means unlimited
	RateLimit float64
	UserAgent string
}

// DefaultOptions returns production settings
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 10 * time.Second,
		UserAgent:    "agentplatform/1.0",
	}
}

// Client calls peer platforms and agent containers
type Client struct {
	// resty retries and serves the idempotent peer reads
	resty *resty.Client
	// invoker makes exactly one attempt; agent actions may not be idempotent
	invoker *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// NewClient creates a client
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Create underlying retryable client
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = leveledLogger{logger.Named("retry").Sugar()}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		resty:    configure(resty.NewWithClient(retryClient.StandardClient()), opts),
		invoker:  configure(resty.New(), opts),
		limiter:  limiter,
		logger:   logger,
		breakers: make(map[string]*resilience.Breaker),
	}
}

func configure(r *resty.Client, opts Options) *resty.Client {
	r.SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.ConfigStd.Marshal).
		SetJSONUnmarshaler(sonic.ConfigStd.Unmarshal)
	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		tracing.Inject(req.Context(), req.Header)
		return nil
	})
	return r
}

func newBreaker(host string) *resilience.Breaker {
	return resilience.New("remote:"+host, resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			return err == nil || (errors.As(err, &statusErr) && statusErr.StatusCode < 500)
		},
	})
}

// breakerFor returns the circuit breaker of the host serving endpoint
func (c *Client) breakerFor(endpoint string) *resilience.Breaker {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[host]
	if !ok {
		b = newBreaker(host)
		c.breakers[host] = b
	}
	return b
}

// BreakerState returns the circuit state of the host serving baseURL
func (c *Client) BreakerState(baseURL string) resilience.State {
	return c.breakerFor(baseURL).State()
}

// PlatformConfig fetches a peer's platform description
func (c *Client) PlatformConfig(ctx context.Context, baseURL, token string) (types.PlatformInfo, error) {
	var info types.PlatformInfo
	resp, err := c.do(ctx, c.resty, http.MethodGet, joinURL(baseURL, "/info"), token, nil)
	if err != nil {
		return info, err
	}
	if err := sonic.ConfigStd.Unmarshal(resp.Body(), &info); err != nil {
		return info, fmt.Errorf("%w: decode platform info: %w", ErrUnavailable, err)
	}
	return info, nil
}

// Containers fetches a peer's running containers
func (c *Client) Containers(ctx context.Context, baseURL, token string) ([]types.RunningContainer, error) {
	resp, err := c.do(ctx, c.resty, http.MethodGet, joinURL(baseURL, "/containers"), token, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Containers []types.RunningContainer `json:"containers"`
	}
	if err := sonic.ConfigStd.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode containers: %w", ErrUnavailable, err)
	}
	if envelope.Containers == nil {
		envelope.Containers = []types.RunningContainer{}
	}
	return envelope.Containers, nil
}

// Invoke calls an action on an agent hosted by the container at baseURL. An
// empty response body yields a null value.
func (c *Client) Invoke(ctx context.Context, baseURL, action, agentID string, args map[string]value.Value, token string) (value.Value, error) {
	endpoint := joinURL(baseURL, "/invoke/"+url.PathEscape(action)+"/"+url.PathEscape(agentID))
	if args == nil {
		args = map[string]value.Value{}
	}

	resp, err := c.do(ctx, c.invoker, http.MethodPost, endpoint, token, args)
	if err != nil {
		return value.Null(), err
	}

	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return value.Null(), nil
	}
	result, err := value.Parse(body)
	if err != nil {
		return value.Null(), fmt.Errorf("%w: decode result of %s: %w", ErrUnavailable, action, err)
	}
	return result, nil
}

// do executes one request through the rate limiter and the host's breaker
func (c *Client) do(ctx context.Context, client *resty.Client, method, endpoint, token string, body interface{}) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := resilience.Call(ctx, c.breakerFor(endpoint), func(ctx context.Context) (*resty.Response, error) {
		req := client.R().SetContext(ctx)
		if token != "" {
			req.SetAuthToken(token)
		}
		if body != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(body)
		}

		resp, err := req.Execute(method, endpoint)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 400 {
			return resp, &StatusError{Method: method, URL: endpoint, StatusCode: resp.StatusCode(), Body: resp.String()}
		}
		return resp, nil
	})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
			return nil, err
		}
		c.logger.Debug("Remote call failed",
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
