package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moose-rewards/moose/internal/domain"
	"github.com/moose-rewards/moose/internal/infra/observability"
)

// ─── Paged Views ────────────────────────────────────────────────────────────
// A paged view is the data side of a multi-page reply: the platform shows
// page 0 and sends navigation events back with the view ID.

// Pager renders one page of a view. It must be safe to call repeatedly.
type Pager interface {
	PageCount() int
	RenderPage(page int) *Embed
}

// ViewRef identifies a view and the page currently shown.
type ViewRef struct {
	ID    string `json:"id"`
	Page  int    `json:"page"`
	Total int    `json:"total"`
}

type view struct {
	owner   string
	pager   Pager
	page    int
	touched time.Time
}

// ViewRegistry holds open views in memory until they idle out.
type ViewRegistry struct {
	mu    sync.Mutex
	views map[string]*view
	ttl   time.Duration
	now   func() time.Time
}

// NewViewRegistry creates a registry whose views expire ttl after their
// last use.
func NewViewRegistry(ttl time.Duration) *ViewRegistry {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ViewRegistry{
		views: make(map[string]*view),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Open stores a new view on page 0.
func (r *ViewRegistry) Open(owner string, p Pager) *ViewRef {
	id := uuid.NewString()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)
	r.views[id] = &view{owner: owner, pager: p, touched: now}
	observability.ActiveViews.Set(float64(len(r.views)))

	return &ViewRef{ID: id, Page: 0, Total: max(p.PageCount(), 1)}
}

// Navigate applies dir to the view and renders the resulting page. Only the
// owner may navigate.
func (r *ViewRegistry) Navigate(id, actor string, dir domain.Direction) (*Embed, *ViewRef, error) {
	now := r.now()

	r.mu.Lock()
	r.pruneLocked(now)
	v, ok := r.views[id]
	if !ok {
		r.mu.Unlock()
		return nil, nil, domain.ErrViewNotFound
	}
	if v.owner != actor {
		r.mu.Unlock()
		return nil, nil, domain.ErrUnauthorized
	}
	total := max(v.pager.PageCount(), 1)
	v.page = domain.Navigate(v.page, dir, total)
	v.touched = now
	page := v.page
	pager := v.pager
	r.mu.Unlock()

	return pager.RenderPage(page), &ViewRef{ID: id, Page: page, Total: total}, nil
}

// Prune drops expired views and returns how many remain.
func (r *ViewRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.now())
	return len(r.views)
}

func (r *ViewRegistry) pruneLocked(now time.Time) {
	for id, v := range r.views {
		if now.Sub(v.touched) >= r.ttl {
			delete(r.views, id)
		}
	}
	observability.ActiveViews.Set(float64(len(r.views)))
}
