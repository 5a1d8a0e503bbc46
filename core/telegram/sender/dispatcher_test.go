package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 300})

	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 50; i++ {
		for _, chat := range []int64{10, 11, -12} {
			chat, i := chat, i
			err := d.Enqueue(context.Background(), "send", chat, func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for chat, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("chat %d: got %d jobs", chat, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("chat %d out of order at %d: %v", chat, i, seq)
			}
		}
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	calls := 0
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send", 1, func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()
	select {
	case <-done:
	default:
		t.Fatalf("job never succeeded, calls=%d", calls)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("ErrorCount = %d, want 0", d.ErrorCount())
	}
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	calls := 0
	_ = d.Enqueue(context.Background(), "send", 1, func() error {
		calls++
		return &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	})
	d.Close()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	if err := d.Enqueue(context.Background(), "send", 1, func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue after close = %v, want ErrQueueClosed", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{&tele.Error{Code: 403}, "blocked"},
		{&tele.Error{Code: 400}, "http_4xx"},
		{&tele.Error{Code: 502}, "http_5xx"},
		{&net.DNSError{Err: "no such host"}, "dns"},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		{errors.New("weird"), "unknown"},
	}
	for _, tt := range tests {
		if got := classifyError(tt.err); got != tt.want {
			t.Errorf("classifyError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAE-secret_token/sendMessage": EOF`)
	got := sanitizeErrorMessage(err)
	if got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF` {
		t.Fatalf("sanitizeErrorMessage = %q", got)
	}
}
