package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Builder accumulates filters for one table and terminates in Get, Insert,
// Update or Delete. Builders are single-use; From returns a fresh one.
type Builder struct {
	client  *Client
	table   string
	selects string
	filters url.Values
	order   string
	limit   int
	offset  int
}

// From starts a query or mutation against the named table.
func (c *Client) From(table string) *Builder {
	return &Builder{
		client:  c,
		table:   table,
		filters: url.Values{},
		limit:   -1,
		offset:  -1,
	}
}

// Select sets the columns to return, e.g. "id,likes_count" or "*".
// Defaults to "*".
func (b *Builder) Select(columns string) *Builder {
	b.selects = columns
	return b
}

// Eq filters rows where column equals value.
func (b *Builder) Eq(column string, value any) *Builder {
	b.filters.Add(column, "eq."+formatValue(value))
	return b
}

// Neq filters rows where column does not equal value.
func (b *Builder) Neq(column string, value any) *Builder {
	b.filters.Add(column, "neq."+formatValue(value))
	return b
}

// In filters rows where column is one of values.
func (b *Builder) In(column string, values []string) *Builder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	b.filters.Add(column, "in.("+strings.Join(quoted, ",")+")")
	return b
}

// Lt filters rows where column is less than value.
func (b *Builder) Lt(column string, value any) *Builder {
	b.filters.Add(column, "lt."+formatValue(value))
	return b
}

// Gt filters rows where column is greater than value.
func (b *Builder) Gt(column string, value any) *Builder {
	b.filters.Add(column, "gt."+formatValue(value))
	return b
}

// Or filters rows matching any of the given conditions, each written in
// backend filter syntax, e.g. Or("sender_id.eq.a,receiver_id.eq.a").
func (b *Builder) Or(conditions string) *Builder {
	b.filters.Add("or", "("+conditions+")")
	return b
}

// Order sorts results by column. Pass descending=true for newest-first.
func (b *Builder) Order(column string, descending bool) *Builder {
	dir := "asc"
	if descending {
		dir = "desc"
	}
	b.order = column + "." + dir
	return b
}

// Limit caps the number of returned rows.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips the first n rows; combined with Limit for pagination.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Range selects rows from (inclusive) through to (inclusive), a shorthand
// for Offset+Limit pagination.
func (b *Builder) Range(from, to int) *Builder {
	b.offset = from
	b.limit = to - from + 1
	return b
}

// Get executes the read and decodes the rows into dest (a pointer to a
// slice).
func (b *Builder) Get(ctx context.Context, dest any) error {
	q := b.query()
	if b.selects != "" {
		q.Set("select", b.selects)
	} else {
		q.Set("select", "*")
	}
	return b.client.do(ctx, http.MethodGet, "/rest/v1/"+b.table, q, nil, dest, "query "+b.table)
}

// Insert writes one or more rows. When dest is non-nil the canonical rows
// (server-assigned id and timestamps included) are decoded into it.
func (b *Builder) Insert(ctx context.Context, row any, dest any) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("backend: insert %s: encode row: %w", b.table, err)
	}
	return b.client.do(ctx, http.MethodPost, "/rest/v1/"+b.table, b.query(), body, dest, "insert "+b.table)
}

// Update patches all rows matching the accumulated filters with the given
// values.
func (b *Builder) Update(ctx context.Context, values any, dest any) error {
	body, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("backend: update %s: encode values: %w", b.table, err)
	}
	return b.client.do(ctx, http.MethodPatch, "/rest/v1/"+b.table, b.query(), body, dest, "update "+b.table)
}

// Delete removes all rows matching the accumulated filters.
func (b *Builder) Delete(ctx context.Context) error {
	return b.client.do(ctx, http.MethodDelete, "/rest/v1/"+b.table, b.query(), nil, nil, "delete "+b.table)
}

func (b *Builder) query() url.Values {
	q := url.Values{}
	for k, vs := range b.filters {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if b.order != "" {
		q.Set("order", b.order)
	}
	if b.limit >= 0 {
		q.Set("limit", strconv.Itoa(b.limit))
	}
	if b.offset >= 0 {
		q.Set("offset", strconv.Itoa(b.offset))
	}
	return q
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
