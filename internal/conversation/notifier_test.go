package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hammamikhairi/vicvoix/internal/logger"
)

func TestNotifierPrintsAndRemembers(t *testing.T) {
	var out []string
	n := NewCLINotifier(logger.New(logger.LevelOff, nil), func(format string, a ...interface{}) {
		out = append(out, fmt.Sprintf(format, a...))
	})

	ctx := context.Background()
	n.Notify(ctx, "3 voices loaded")
	n.NotifyUrgent(ctx, "\x1b[31msynthesis failed\x1b[0m ")
	n.Notify(ctx, "   ")

	if len(out) != 2 {
		t.Fatalf("expected 2 printed lines, got %d: %q", len(out), out)
	}
	if !strings.Contains(out[0], "3 voices loaded") {
		t.Fatalf("unexpected output %q", out[0])
	}

	recent := n.Recent()
	if len(recent) != 2 || recent[1] != "synthesis failed" {
		t.Fatalf("unexpected history %q", recent)
	}
}

func TestNotifierHistoryIsBounded(t *testing.T) {
	n := NewCLINotifier(logger.New(logger.LevelOff, nil), func(string, ...interface{}) {})
	for i := 0; i < 30; i++ {
		n.Notify(context.Background(), fmt.Sprintf("msg %d", i))
	}
	recent := n.Recent()
	if len(recent) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(recent))
	}
	if recent[0] != "msg 10" || recent[19] != "msg 29" {
		t.Fatalf("unexpected window %q .. %q", recent[0], recent[19])
	}
}

func TestPlain(t *testing.T) {
	tests := map[string]string{
		"\x1b[1m\x1b[36mhello\x1b[0m": "hello",
		"  spaced  ":                  "spaced",
		"":                            "",
	}
	for in, want := range tests {
		if got := Plain(in); got != want {
			t.Errorf("Plain(%q) = %q, want %q", in, got, want)
		}
	}
}
