package task

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestBestEffortLogsError(t *testing.T) {
	logger, buf := newTestLogger()

	BestEffort(context.Background(), logger, "send-email", func(ctx context.Context) error {
		return errors.New("smtp down")
	})

	out := buf.String()
	if !strings.Contains(out, "send-email") || !strings.Contains(out, "smtp down") {
		t.Errorf("log = %q, want task name and error", out)
	}
}

func TestBestEffortRecoversPanic(t *testing.T) {
	logger, buf := newTestLogger()

	BestEffort(context.Background(), logger, "audit", func(ctx context.Context) error {
		panic("nil store")
	})

	if !strings.Contains(buf.String(), "panicked") {
		t.Errorf("log = %q, want panic record", buf.String())
	}
}

func TestGoOutlivesCallerContext(t *testing.T) {
	logger, _ := newTestLogger()
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan error, 1)
	done := Go(ctx, logger, "push", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		ran <- ctx.Err()
		return nil
	})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
	if err := <-ran; err != nil {
		t.Errorf("detached context err = %v, want nil", err)
	}
}
