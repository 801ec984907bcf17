package services

import (
	"time"

	"github.com/taskhall/engine/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize fills defaults and caps the page size.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p Pagination) window() repository.Page {
	p = p.Normalize()
	return repository.Page{Offset: (p.Page - 1) * p.PageSize, Limit: p.PageSize}
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
