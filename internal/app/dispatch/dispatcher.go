// Package dispatch maps chat command invocations onto the points and bank
// services. Each variant gets its own Dispatcher built from an explicit
// command table; authorization and argument validation happen before any
// handler runs, and every error becomes a user visible reply.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/moose-rewards/moose/internal/domain"
	"github.com/moose-rewards/moose/internal/infra/observability"
)

// Config controls dispatcher behavior.
type Config struct {
	ReplyTimeout time.Duration // bound on reply delivery (default: 5s)
}

// DefaultConfig returns dispatcher defaults.
func DefaultConfig() Config {
	return Config{ReplyTimeout: 5 * time.Second}
}

// Dispatcher routes invocations of one variant.
type Dispatcher struct {
	variant  string
	commands map[string]Command
	cfg      Config
	views    *ViewRegistry
	notifier Notifier
	tracer   *observability.Tracer
	logger   *slog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithViews enables paged views.
func WithViews(v *ViewRegistry) Option { return func(d *Dispatcher) { d.views = v } }

// WithNotifier sets the audit notifier.
func WithNotifier(n Notifier) Option { return func(d *Dispatcher) { d.notifier = n } }

// WithTracer records a span per invocation.
func WithTracer(t *observability.Tracer) Option { return func(d *Dispatcher) { d.tracer = t } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// New builds a dispatcher for variant from commands. Duplicate names panic;
// the table is fixed at startup.
func New(variant string, cfg Config, commands []Command, opts ...Option) *Dispatcher {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultConfig().ReplyTimeout
	}
	d := &Dispatcher{
		variant:  variant,
		commands: make(map[string]Command, len(commands)),
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, c := range commands {
		name := strings.ToLower(c.Name)
		if _, dup := d.commands[name]; dup {
			panic(fmt.Sprintf("dispatch: duplicate command %q", name))
		}
		d.commands[name] = c
	}
	for _, o := range opts {
		o(d)
	}
	if d.notifier == nil {
		d.notifier = LogNotifier{Logger: d.logger}
	}
	d.logger = d.logger.With("component", "dispatch", "variant", variant)
	return d
}

// Variant returns the variant name.
func (d *Dispatcher) Variant() string { return d.variant }

// Commands lists the command table sorted by name.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ─── Dispatch ───────────────────────────────────────────────────────────────

// Dispatch runs the invocation and returns the reply to send. It never fails:
// every error is turned into an ephemeral reply.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Reply {
	name := strings.ToLower(strings.TrimSpace(inv.Command))
	span := d.tracer.Start(ctx, d.variant, name, inv.ActorID)

	reply, err := d.run(ctx, name, inv)
	if err != nil {
		reply = d.errorReply(ctx, name, err)
		if isDomainError(err) {
			d.tracer.End(span, observability.OutcomeRejected, err)
		} else {
			d.tracer.End(span, observability.OutcomeFailed, err)
		}
	} else {
		d.tracer.End(span, observability.OutcomeOK, nil)
	}
	reply.Handle = inv.Handle
	return reply
}

func (d *Dispatcher) run(ctx context.Context, name string, inv Invocation) (Reply, error) {
	cmd, ok := d.commands[name]
	if !ok {
		return Reply{}, domain.ErrUnknownCommand
	}
	if inv.ActorID == "" {
		return Reply{}, fmt.Errorf("%w: actor is required", domain.ErrInvalidArgument)
	}
	if err := authorize(cmd, inv); err != nil {
		return Reply{}, err
	}
	if cmd.NeedsTarget && inv.TargetID == "" {
		return Reply{}, fmt.Errorf("%w: member is required", domain.ErrInvalidArgument)
	}
	args, err := parseArgs(cmd.Args, inv.Args)
	if err != nil {
		return Reply{}, err
	}

	req := &Request{
		Invocation:  inv,
		Args:        args,
		Subject:     inv.ActorID,
		SubjectName: inv.ActorName,
		views:       d.views,
	}
	if inv.TargetID != "" {
		req.Subject, req.SubjectName = inv.TargetID, inv.TargetName
		if req.SubjectName == "" {
			req.SubjectName = inv.TargetID
		}
	}

	if cmd.Mutates {
		ctx = context.WithoutCancel(ctx)
	}
	reply, err := cmd.Handle(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	for _, line := range req.audits {
		d.notifier.Notify(ctx, d.variant, line)
	}
	return reply, nil
}

func authorize(cmd Command, inv Invocation) error {
	switch cmd.Access {
	case AccessAdmin:
		if !inv.HasAdminRole {
			return domain.ErrUnauthorized
		}
	case AccessSelfOrAdmin:
		if inv.TargetID != "" && inv.TargetID != inv.ActorID && !inv.HasAdminRole {
			return domain.ErrUnauthorized
		}
	}
	return nil
}

// Serve dispatches inv and delivers the reply through r. Delivery is bounded
// by the reply timeout and detached from ctx cancellation; a failed delivery
// is reported but the command's effects stay committed.
func (d *Dispatcher) Serve(ctx context.Context, inv Invocation, r Replier) error {
	reply := d.Dispatch(ctx, inv)
	return d.deliver(ctx, reply, r)
}

// Navigate moves a paged view and returns the re-rendered page.
func (d *Dispatcher) Navigate(ctx context.Context, viewID, actorID, direction string) Reply {
	reply, err := d.navigate(viewID, actorID, direction)
	if err != nil {
		return d.errorReply(ctx, "navigate", err)
	}
	return reply
}

func (d *Dispatcher) navigate(viewID, actorID, direction string) (Reply, error) {
	if d.views == nil {
		return Reply{}, domain.ErrViewNotFound
	}
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: direction must be first, prev, next or last", err)
	}
	embed, ref, err := d.views.Navigate(viewID, actorID, dir)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Embed: embed, View: ref, Ephemeral: true}, nil
}

func (d *Dispatcher) deliver(ctx context.Context, reply Reply, r Replier) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ReplyTimeout)
	defer cancel()

	if err := r.Reply(rctx, reply); err != nil {
		observability.ReplyFailures.WithLabelValues(d.variant).Inc()
		d.logger.Warn("reply delivery failed", "handle", reply.Handle, "error", err)
		return fmt.Errorf("deliver reply: %w", err)
	}
	return nil
}

func (d *Dispatcher) errorReply(ctx context.Context, command string, err error) Reply {
	msg, code, known := userMessage(err)
	if !known {
		d.logger.ErrorContext(ctx, "command failed", "command", command, "error", err)
	}
	return Reply{Text: msg, Ephemeral: true, Error: code}
}
