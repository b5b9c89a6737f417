package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moose-rewards/moose/internal/domain"
)

// ─── Invocation ─────────────────────────────────────────────────────────────

// Invocation is a command as delivered by the chat platform. The admin claim
// is trusted as given; it is never computed here.
type Invocation struct {
	Command      string            `json:"command"`
	Args         map[string]string `json:"args,omitempty"`
	ActorID      string            `json:"actor_id"`
	ActorName    string            `json:"actor_name"`
	HasAdminRole bool              `json:"has_admin_role"`
	TargetID     string            `json:"target_id,omitempty"`
	TargetName   string            `json:"target_name,omitempty"`
	Handle       string            `json:"handle,omitempty"`
}

// ─── Command Table ──────────────────────────────────────────────────────────

// Access is the authorization rule of a command.
type Access int

const (
	// AccessSelf is open to every member.
	AccessSelf Access = iota
	// AccessAdmin requires the admin claim.
	AccessAdmin
	// AccessSelfOrAdmin is open for the actor's own account; any other
	// target requires the admin claim.
	AccessSelfOrAdmin
)

func (a Access) String() string {
	switch a {
	case AccessAdmin:
		return "admin"
	case AccessSelfOrAdmin:
		return "self-or-admin"
	default:
		return "self"
	}
}

// ArgKind is the type of a command argument.
type ArgKind int

const (
	ArgString ArgKind = iota
	ArgInt
	ArgDecimal
	ArgWindow
)

// ArgSpec declares one named argument.
type ArgSpec struct {
	Name        string
	Kind        ArgKind
	Optional    bool
	Default     string
	Description string
}

// HandlerFunc executes a validated command.
type HandlerFunc func(ctx context.Context, req *Request) (Reply, error)

// Command is one entry of a dispatcher's command table.
type Command struct {
	Name        string
	Description string
	Access      Access
	NeedsTarget bool // the invocation must name a member
	Mutates     bool // runs detached from request cancellation
	Args        []ArgSpec
	Handle      HandlerFunc
}

// ─── Parsed Arguments ───────────────────────────────────────────────────────

// Args holds arguments converted to their declared kinds.
type Args struct {
	strs    map[string]string
	ints    map[string]int64
	decs    map[string]decimal.Decimal
	windows map[string]domain.ReportWindow
}

func (a Args) String(name string) string { return a.strs[name] }
func (a Args) Int(name string) int64 { return a.ints[name] }
func (a Args) Decimal(name string) decimal.Decimal { return a.decs[name] }
func (a Args) Window(name string) domain.ReportWindow { return a.windows[name] }

func parseArgs(specs []ArgSpec, raw map[string]string) (Args, error) {
	args := Args{
		strs:    make(map[string]string),
		ints:    make(map[string]int64),
		decs:    make(map[string]decimal.Decimal),
		windows: make(map[string]domain.ReportWindow),
	}
	for _, spec := range specs {
		v, ok := raw[spec.Name]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			if !spec.Optional {
				return Args{}, fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, spec.Name)
			}
			v = spec.Default
			if v == "" {
				continue
			}
		}

		switch spec.Kind {
		case ArgString:
			args.strs[spec.Name] = v
		case ArgInt:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Args{}, fmt.Errorf("%w: %s must be a whole number", domain.ErrInvalidArgument, spec.Name)
			}
			args.ints[spec.Name] = n
		case ArgDecimal:
			d, err := decimal.NewFromString(v)
			if err != nil {
				return Args{}, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidArgument, spec.Name)
			}
			if !domain.DecimalInRange(d) {
				return Args{}, fmt.Errorf("%w: %s is out of range", domain.ErrInvalidArgument, spec.Name)
			}
			args.decs[spec.Name] = d
		case ArgWindow:
			w, err := domain.ParseWindow(v)
			if err != nil {
				return Args{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
			}
			args.windows[spec.Name] = w
		}
	}
	return args, nil
}

// ─── Request ────────────────────────────────────────────────────────────────

// Request is what a handler sees: the invocation, its parsed arguments and
// the resolved subject of the command.
type Request struct {
	Invocation
	Args Args

	// Subject is the target member when one was named, else the actor.
	Subject     string
	SubjectName string

	audits []string
	views  *ViewRegistry
}

// Audit queues a line for the notifier. Lines are delivered only when the
// handler succeeds.
func (r *Request) Audit(format string, args ...any) {
	r.audits = append(r.audits, fmt.Sprintf(format, args...))
}

// OpenView registers a paged view owned by the actor.
func (r *Request) OpenView(p Pager) (*ViewRef, error) {
	if r.views == nil {
		return nil, fmt.Errorf("paged views are not enabled")
	}
	return r.views.Open(r.ActorID, p), nil
}

// IsSelf reports whether the command targets the actor's own account.
func (r *Request) IsSelf() bool { return r.Subject == r.ActorID }
