package adapters

import (
	apperrors "revattest/internal/errors"
)

// DefaultMaxPages bounds every pagination loop.
const DefaultMaxPages = 100

// Paginator guards a pagination loop against misbehaving continuation
// links: it stops at a page limit and treats a repeated token as an error.
type Paginator struct {
	provider string
	op       string
	maxPages int
	pages    int
	seen     map[string]struct{}
}

// NewPaginator creates a guard for one pagination loop.
func NewPaginator(provider, op string, maxPages int) *Paginator {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Paginator{
		provider: provider,
		op:       op,
		maxPages: maxPages,
		seen:     make(map[string]struct{}),
	}
}

// Next must be called before requesting the page identified by token.
// The first page may use an empty token.
func (p *Paginator) Next(token string) error {
	if p.pages >= p.maxPages {
		return apperrors.NewProviderError(p.provider, p.op,
			apperrors.Wrap(apperrors.ErrPageLimit, "limit %d", p.maxPages))
	}
	if token != "" {
		if _, dup := p.seen[token]; dup {
			return apperrors.NewProviderError(p.provider, p.op,
				apperrors.Wrap(apperrors.ErrPaginationLoop, "token %q", token))
		}
		p.seen[token] = struct{}{}
	}
	p.pages++
	return nil
}

// Pages returns how many pages were requested.
func (p *Paginator) Pages() int {
	return p.pages
}
