package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/metrics"
	"github.com/m3rciful/labbot/core/telegram/netutil"
)

// Lab files are fetched through the same client as API calls, so the overall
// timeout leaves room for a 20 MB download on a slow link.
const (
	dialTimeout     = 5 * time.Second
	tlsTimeout      = 5 * time.Second
	headerTimeout   = 10 * time.Second
	idleTimeout     = 30 * time.Second
	keepAlive       = 30 * time.Second
	requestTimeout  = 90 * time.Second
	apiRetries      = 3
	apiRetryBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls and file downloads.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   requestTimeout,
		Transport: &retryTransport{next: base, retries: apiRetries, backoff: apiRetryBackoff},
	}
}

// retryTransport repeats requests that failed before any response arrived.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		retry, rerr := rewind(req)
		if rerr != nil {
			return nil, err
		}
		method := apiMethod(req)
		metrics.APIRetries.WithLabelValues(method).Inc()
		logger.LogEvent(req.Context(), logger.TG, slog.LevelDebug, "api.retry",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.String("err", sanitize(err)),
		)

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		resp, err = t.next.RoundTrip(retry)
	}
	return resp, err
}

// rewind clones req with a fresh body; requests whose body cannot be replayed are not retried.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, http.ErrBodyNotAllowed
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// apiMethod names the Bot API method of req ("sendDocument"), or "file" for downloads.
func apiMethod(req *http.Request) string {
	if strings.HasPrefix(req.URL.Path, "/file/") {
		return "file"
	}
	return path.Base(req.URL.Path)
}

func sanitize(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "/bot"); i >= 0 {
		if j := strings.IndexAny(msg[i+4:], "/\" "); j >= 0 {
			return msg[:i] + "/bot<redacted>" + msg[i+4+j:]
		}
	}
	return msg
}
