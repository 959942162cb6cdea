// Package notification formats signal events and delivers them to the
// configured destinations (Telegram, webhooks, Redis pub/sub, the log).
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Sender is the interface for all notification backends.
type Sender interface {
	// Send delivers text to target. The meaning of target depends on the
	// backend: a chat ID, a URL, a channel name.
	Send(ctx context.Context, target, text string) error
	// Name returns the destination scheme the sender serves (e.g. "telegram").
	Name() string
}

// Destination is a parsed "scheme:target" identifier.
type Destination struct {
	Scheme string
	Target string
}

func (d Destination) String() string { return d.Scheme + ":" + d.Target }

// ParseDestination splits s at the first colon. Webhook URLs keep their own
// colons, so "webhook:https://x" has target "https://x".
func ParseDestination(s string) (Destination, error) {
	scheme, target, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || scheme == "" || target == "" {
		return Destination{}, fmt.Errorf("notification: destination %q must be scheme:target", s)
	}
	return Destination{Scheme: strings.ToLower(scheme), Target: target}, nil
}

// Router resolves destinations to registered senders by scheme.
type Router struct {
	senders map[string]Sender
}

// NewRouter registers senders under their Name.
func NewRouter(senders ...Sender) *Router {
	r := &Router{senders: make(map[string]Sender, len(senders))}
	for _, s := range senders {
		r.senders[s.Name()] = s
	}
	return r
}

// Schemes lists the registered schemes in sorted order.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.senders))
	for k := range r.senders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Check reports an error if d has no sender.
func (r *Router) Check(d Destination) error {
	if _, ok := r.senders[d.Scheme]; !ok {
		return fmt.Errorf("notification: no sender for scheme %q (have %v)", d.Scheme, r.Schemes())
	}
	return nil
}

// Send delivers text to d.
func (r *Router) Send(ctx context.Context, d Destination, text string) error {
	s, ok := r.senders[d.Scheme]
	if !ok {
		return fmt.Errorf("notification: no sender for scheme %q", d.Scheme)
	}
	return s.Send(ctx, d.Target, text)
}

// LogSender writes messages to the structured log (useful for development).
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-based sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With(slog.String("component", "notify-log"))}
}

func (l *LogSender) Name() string { return "log" }

func (l *LogSender) Send(ctx context.Context, target, text string) error {
	l.logger.InfoContext(ctx, "notification",
		slog.String("destination", target),
		slog.String("text", text),
	)
	return nil
}
