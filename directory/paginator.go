package directory

import (
	"context"

	"github.com/hcommons/membersync/domain"
)

// Direction selects which way a page request walks from its cursor.
type Direction string

const (
	DirectionNext Direction = "next"
	DirectionPrev Direction = "prev"
)

// Store is the minimal query surface the paginator needs. All listing
// methods operate on the ascending (username, id) order; Before fetches in
// descending order internally and the paginator restores ascending
// presentation order.
type Store interface {
	// First returns up to limit rows from the start of the order.
	First(ctx context.Context, limit int) ([]*domain.Profile, error)
	// After returns up to limit rows strictly greater than the boundary.
	After(ctx context.Context, boundary Cursor, limit int) ([]*domain.Profile, error)
	// Before returns up to limit rows strictly less than the boundary, in
	// descending order.
	Before(ctx context.Context, boundary Cursor, limit int) ([]*domain.Profile, error)
	// PrefixCount returns how many rows sort at or before the given row.
	PrefixCount(ctx context.Context, row Cursor) (int64, error)
	// TotalCount returns the total number of rows.
	TotalCount(ctx context.Context) (int64, error)
}

// Page is one window of the directory plus the navigation state needed to
// move from it.
type Page struct {
	Profiles []*domain.Profile

	HasNext    bool
	HasPrev    bool
	NextCursor string
	PrevCursor string

	CurrentPage int64
	PageCount   int64
	TotalCount  int64
	PageSize    int
}

// Paginator produces stable, resumable pages over the directory. Rows are
// addressed by boundary cursor rather than offset, so pages stay consistent
// while the underlying set changes and deep pages stay cheap.
type Paginator struct {
	store    Store
	pageSize int
}

// NewPaginator creates a paginator with the given page size.
func NewPaginator(store Store, pageSize int) *Paginator {
	return &Paginator{store: store, pageSize: pageSize}
}

// PageSize returns the configured page size.
func (p *Paginator) PageSize() int { return p.pageSize }

// Page returns the page adjacent to the given cursor in the given
// direction, or the first page when the token is empty.
func (p *Paginator) Page(ctx context.Context, token string, dir Direction) (*Page, error) {
	if token == "" {
		return p.firstPage(ctx)
	}

	boundary, err := DecodeCursor(token)
	if err != nil {
		return nil, err
	}

	if dir == DirectionPrev {
		return p.prevPage(ctx, boundary)
	}
	return p.nextPage(ctx, boundary)
}

func (p *Paginator) firstPage(ctx context.Context) (*Page, error) {
	rows, err := p.store.First(ctx, p.pageSize+1)
	if err != nil {
		return nil, err
	}

	rows, hasNext := truncate(rows, p.pageSize)
	return p.assemble(ctx, rows, hasNext, false)
}

func (p *Paginator) nextPage(ctx context.Context, boundary Cursor) (*Page, error) {
	rows, err := p.store.After(ctx, boundary, p.pageSize+1)
	if err != nil {
		return nil, err
	}

	rows, hasNext := truncate(rows, p.pageSize)
	// A cursor was supplied, so there is somewhere to go back to.
	return p.assemble(ctx, rows, hasNext, true)
}

func (p *Paginator) prevPage(ctx context.Context, boundary Cursor) (*Page, error) {
	rows, err := p.store.Before(ctx, boundary, p.pageSize+1)
	if err != nil {
		return nil, err
	}

	rows, hasPrev := truncate(rows, p.pageSize)
	reverse(rows)
	// Forward navigation exists only if this page actually has rows to
	// move on from.
	return p.assemble(ctx, rows, len(rows) > 0, hasPrev)
}

// assemble computes cursors, the current-page estimate, and the total page
// count for a presentation-ordered row slice.
func (p *Paginator) assemble(ctx context.Context, rows []*domain.Profile, hasNext, hasPrev bool) (*Page, error) {
	page := &Page{
		Profiles: rows,
		HasNext:  hasNext,
		HasPrev:  hasPrev,
		PageSize: p.pageSize,
	}

	if hasNext && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.NextCursor = EncodeCursor(Cursor{Username: last.Username, ID: last.ID})
	}
	if hasPrev && len(rows) > 0 {
		first := rows[0]
		page.PrevCursor = EncodeCursor(Cursor{Username: first.Username, ID: first.ID})
	}

	total, err := p.store.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	page.TotalCount = total
	page.PageCount = ceilDiv(total, int64(p.pageSize))

	page.CurrentPage = 1
	if len(rows) > 0 {
		first := rows[0]
		prefix, err := p.store.PrefixCount(ctx, Cursor{Username: first.Username, ID: first.ID})
		if err != nil {
			return nil, err
		}
		page.CurrentPage = ceilDiv(prefix, int64(p.pageSize))
	}

	return page, nil
}

func truncate(rows []*domain.Profile, pageSize int) ([]*domain.Profile, bool) {
	if len(rows) > pageSize {
		return rows[:pageSize], true
	}
	return rows, false
}

func reverse(rows []*domain.Profile) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// ceilDiv returns ceil(n/d), never less than 1.
func ceilDiv(n, d int64) int64 {
	if n <= 0 {
		return 1
	}
	pages := (n + d - 1) / d
	if pages < 1 {
		return 1
	}
	return pages
}
