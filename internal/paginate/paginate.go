// Package paginate accumulates every item of a cursor-paginated remote list.
package paginate

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidLimit is returned for a non-positive page size
	ErrInvalidLimit = errors.New("page limit must be positive")
	// ErrCursorStalled is returned when a page repeats the previous cursor
	ErrCursorStalled = errors.New("pagination cursor did not advance")
)

// Page is one page of a remote list. An empty Cursor means no further pages.
type Page[T any] struct {
	Items  []T
	Cursor string
}

// ListFunc fetches up to limit items strictly after cursor.
// An empty cursor requests the first page.
type ListFunc[T any] func(ctx context.Context, cursor string, limit int) (Page[T], error)

// CollectAll calls list until a page is short or carries no cursor and
// returns the concatenation of all pages in order. Any page error aborts
// the walk; partial results are discarded and the error is returned as is.
func CollectAll[T any](ctx context.Context, list ListFunc[T], limit int) ([]T, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	var (
		all    []T
		cursor string
	)
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := list(ctx, cursor, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)

		if len(p.Items) < limit || p.Cursor == "" {
			break
		}
		if p.Cursor == cursor {
			return nil, fmt.Errorf("%w: page %d repeated cursor %q", ErrCursorStalled, page, cursor)
		}
		cursor = p.Cursor
	}

	if all == nil {
		all = []T{}
	}
	return all, nil
}

// CursorFrom builds a page whose cursor is the key of the last item
func CursorFrom[T any](items []T, key func(T) string) Page[T] {
	p := Page[T]{Items: items}
	if len(items) > 0 {
		p.Cursor = key(items[len(items)-1])
	}
	return p
}
