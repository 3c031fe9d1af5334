package jobcontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRunRecoversPanic(t *testing.T) {
	err := Run(context.Background(), func(context.Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected error from panic")
	}
	if !IsPanic(err) {
		t.Fatalf("expected PanicError, got %T", err)
	}
}

func TestRunReturnsError(t *testing.T) {
	want := errors.New("stage failed")
	calls := 0
	err := Run(context.Background(), func(context.Context) error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}

func TestRunSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := Run(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected cancellation error without calling fn, err=%v called=%v", err, called)
	}
}

func TestJobBeginMetadata(t *testing.T) {
	id := uuid.New()
	ctx, cancel := JobBegin(context.Background(), id, "document", 2, time.Second)
	defer cancel()

	md := GetJobMetadata(ctx)
	if md.JobID != id || md.JobType != "document" || md.WorkerID != 2 {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if md.CorrelationID != id.String() {
		t.Fatalf("correlation id = %q, want job id", md.CorrelationID)
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("expected deadline")
	}
}

func TestCorrelationIDOrNew(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-1")
	if got := CorrelationIDOrNew(ctx, ""); got != "corr-1" {
		t.Errorf("got %q, want corr-1", got)
	}
	if got := CorrelationIDOrNew(ctx, "explicit"); got != "explicit" {
		t.Errorf("got %q, want explicit", got)
	}
	if got := CorrelationIDOrNew(context.Background(), ""); got == "" {
		t.Error("expected generated id")
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("completion returned status 503"), true},
		{errors.New("completion returned status 429"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("completion returned status 400"), false},
		{context.Canceled, false},
	}
	for _, c := range cases {
		if got := IsRetryableError(c.err); got != c.want {
			t.Errorf("IsRetryableError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
