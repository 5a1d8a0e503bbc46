package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/metrics"
	"github.com/m3rciful/labbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx    context.Context
	action string
	chatID int64
	run    func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs for the same chat always land on the same worker, so replies keep their order.
type Dispatcher struct {
	opts   Options
	queues []chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher with defaults for zeroed options.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{opts: opts, queues: make([]chan job, opts.Workers)}
	perWorker := opts.QueueSize / opts.Workers
	if perWorker < 1 {
		perWorker = 1
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, perWorker)
		go d.worker(d.queues[i])
	}
	return d
}

// Enqueue schedules run for asynchronous execution on the worker owning chatID.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action string, chatID int64, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queues[d.shard(chatID)] <- job{ctx: ctx, action: action, chatID: chatID, run: run}:
		return nil
	default:
		metrics.SenderJobs.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(chatID int64) int {
	if chatID < 0 {
		chatID = -chatID
	}
	return int(chatID % int64(len(d.queues)))
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(queue <-chan job) {
	defer d.wg.Done()
	for j := range queue {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// the update context may already be done once the handler returned
	deadlineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = j.run()
		if lastErr == nil {
			metrics.SenderJobs.WithLabelValues("ok").Inc()
			logger.Debug(ctx, logger.CompSender, "send.success",
				slog.String("action", j.action),
				slog.Int("attempt", attempt),
				slog.Duration("duration", time.Since(start)),
			)
			return
		}
		delay, retry := d.retryDelay(lastErr, attempt)
		if !retry || attempt == attempts {
			break
		}
		logger.Debug(ctx, logger.CompSender, "send.retry",
			slog.String("action", j.action),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
		)
		if err := sleep(deadlineCtx, delay); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	d.errs.Add(1)
	metrics.SenderJobs.WithLabelValues("fail").Inc()
	logger.Error(ctx, logger.CompSender, "send.fail",
		slog.String("action", j.action),
		slog.String("err", sanitizeErrorMessage(lastErr)),
		slog.String("err_code", classifyError(lastErr)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)
}

// retryDelay honours Telegram flood control and falls back to linear backoff for network errors.
func (d *Dispatcher) retryDelay(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return "flood"
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusForbidden:
			return "blocked"
		case apiErr.Code >= 500:
			return "http_5xx"
		case apiErr.Code >= 400:
			return "http_4xx"
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}
	return "unknown"
}

// sanitizeErrorMessage keeps bot tokens out of logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
