// Package syncsdk is the HTTP client for the tree sync endpoints.
package syncsdk

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"

	"github.com/openmined/treesync/internal/syncproto"
	"github.com/openmined/treesync/internal/version"
)

const (
	HeaderUserAgent = "User-Agent"
	HeaderVersion   = "X-Treesync-Version"

	DefaultRetryCount    = 3
	DefaultRetryInterval = 1 * time.Second
	DefaultTimeout       = 30 * time.Second
)

var (
	ErrNoServerURL  = errors.New("sdk: server url missing")
	ErrBadServerURL = errors.New("sdk: invalid server url")
)

var UserAgent = fmt.Sprintf("treesync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// SyncSDK is the entry point for talking to a tree authority.
type SyncSDK struct {
	client    *req.Client
	baseURL   string
	sessionID string
	stats     *httpStats
	Tree      *TreeAPI
}

type Option func(*sdkOptions)

type sdkOptions struct {
	retryCount    int
	retryInterval time.Duration
	timeout       time.Duration
	sessionID     string
}

// WithRetry sets how often and how far apart failed requests are retried.
// Only transport failures and 5xx responses are retried.
func WithRetry(count int, interval time.Duration) Option {
	return func(o *sdkOptions) {
		o.retryCount = count
		o.retryInterval = interval
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *sdkOptions) {
		o.timeout = timeout
	}
}

// WithSessionID pins the session header instead of generating one.
func WithSessionID(id string) Option {
	return func(o *sdkOptions) {
		o.sessionID = id
	}
}

func New(baseURL string, opts ...Option) (*SyncSDK, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadServerURL, baseURL)
	}

	o := &sdkOptions{
		retryCount:    DefaultRetryCount,
		retryInterval: DefaultRetryInterval,
		timeout:       DefaultTimeout,
		sessionID:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(o.timeout).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonHeader(syncproto.HeaderSession, o.sessionID).
		SetCommonRetryCount(o.retryCount).
		SetCommonRetryFixedInterval(o.retryInterval).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	stats := newHTTPStats()

	return &SyncSDK{
		client:    client,
		baseURL:   baseURL,
		sessionID: o.sessionID,
		stats:     stats,
		Tree:      newTreeAPI(client, stats),
	}, nil
}

func (s *SyncSDK) BaseURL() string {
	return s.baseURL
}

func (s *SyncSDK) SessionID() string {
	return s.sessionID
}

// Stats returns the traffic counters of this client.
func (s *SyncSDK) Stats() Stats {
	return s.stats.snapshot()
}
