package dispatch

import (
	"context"
	"log/slog"
)

// ─── Replies ────────────────────────────────────────────────────────────────

// Reply is a reply request handed back to the chat platform.
type Reply struct {
	Handle    string   `json:"handle,omitempty"`
	Text      string   `json:"text,omitempty"`
	Embed     *Embed   `json:"embed,omitempty"`
	Ephemeral bool     `json:"ephemeral"`
	View      *ViewRef `json:"view,omitempty"`
	Error     string   `json:"error,omitempty"` // machine readable condition
}

// Embed is a structured reply body.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      string  `json:"footer,omitempty"`
}

// Field is one titled block of an embed.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ephemeral builds a private text reply.
func ephemeral(text string) Reply {
	return Reply{Text: text, Ephemeral: true}
}

// Replier delivers a reply. Implementations must honor ctx.
type Replier interface {
	Reply(ctx context.Context, r Reply) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, r Reply) error

func (f ReplierFunc) Reply(ctx context.Context, r Reply) error { return f(ctx, r) }

// ─── Audit Notifications ────────────────────────────────────────────────────

// Notifier receives audit lines for admin actions and referrals.
type Notifier interface {
	Notify(ctx context.Context, variant, line string)
}

// LogNotifier writes audit lines to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, variant, line string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, line, "audit", true, "variant", variant)
}
