// Package conversation delivers short user-facing messages ("toasts")
// from the session to whatever surface is showing the form.
package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*CLINotifier)(nil)

var (
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#67E8F9")).Bold(true)
	urgentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
)

// PrintFunc is a function used to print formatted output.
// Matches the signature of both fmt.Printf and display.UI.Printf.
type PrintFunc func(format string, a ...interface{})

// CLINotifier prints notifications through printFn and keeps the most
// recent ones for the UI to redisplay.
type CLINotifier struct {
	log     *logger.Logger
	printFn PrintFunc

	mu     sync.Mutex
	recent []string
	keep   int
}

// NewCLINotifier creates a notifier. If printFn is nil, output goes to
// stdout.
func NewCLINotifier(log *logger.Logger, printFn PrintFunc) *CLINotifier {
	if printFn == nil {
		printFn = func(format string, a ...interface{}) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &CLINotifier{log: log.With("notify"), printFn: printFn, keep: 20}
}

// Notify prints a normal notification.
func (n *CLINotifier) Notify(ctx context.Context, message string) error {
	return n.deliver(message, infoStyle, false)
}

// NotifyUrgent prints an error-level notification.
func (n *CLINotifier) NotifyUrgent(ctx context.Context, message string) error {
	return n.deliver(message, urgentStyle, true)
}

func (n *CLINotifier) deliver(message string, style lipgloss.Style, urgent bool) error {
	message = Plain(message)
	if message == "" {
		return nil
	}
	if urgent {
		n.log.Warn("%s", message)
	} else {
		n.log.Debug("%s", message)
	}

	n.mu.Lock()
	n.recent = append(n.recent, message)
	if len(n.recent) > n.keep {
		n.recent = n.recent[len(n.recent)-n.keep:]
	}
	n.mu.Unlock()

	n.printFn("%s", style.Render(message))
	return nil
}

// Recent returns up to the last 20 messages, oldest first.
func (n *CLINotifier) Recent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.recent...)
}

var ansiCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Plain strips terminal escape codes and surrounding whitespace.
func Plain(msg string) string {
	return strings.TrimSpace(ansiCodes.ReplaceAllString(msg, ""))
}
