package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Filter is one PostgREST style condition, encoded as column=op.value.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// Eq matches column equal to v.
func Eq(column string, v any) Filter {
	return Filter{Column: column, Op: "eq", Value: fmt.Sprint(v)}
}

// ILike matches column against a case-insensitive pattern.
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: "ilike", Value: pattern}
}

// Query describes a resource read.
type Query struct {
	Columns string
	Filters []Filter
	Order   string
	Limit   int
}

// Values encodes the query as URL parameters.
func (q Query) Values() url.Values {
	v := EncodeFilters(q.Filters)
	if q.Columns != "" {
		v.Set("select", q.Columns)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// EncodeFilters renders filters as URL parameters.
func EncodeFilters(filters []Filter) url.Values {
	v := url.Values{}
	for _, f := range filters {
		v.Add(f.Column, f.Op+"."+f.Value)
	}
	return v
}

// ResourcePath is the path of a resource relative to the base URL.
func ResourcePath(resource string) string {
	return "rest/v1/" + url.PathEscape(resource)
}

// RPCPath is the path of a remote procedure relative to the base URL.
func RPCPath(name string) string {
	return "rest/v1/rpc/" + url.PathEscape(name)
}

// Select reads rows of resource into dst, which must be a pointer to a slice.
func (c *Client) Select(ctx context.Context, resource string, q Query, dst any) error {
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   ResourcePath(resource),
		query:  q.Values(),
	}, dst)
}

// Insert creates a row and decodes the stored representation into dst.
func (c *Client) Insert(ctx context.Context, resource string, row, dst any) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   ResourcePath(resource),
		body:   row,
		prefer: "return=representation",
	}, dst)
}

// Update patches the rows matching filters. At least one filter is required.
func (c *Client) Update(ctx context.Context, resource string, filters []Filter, patch, dst any) error {
	if len(filters) == 0 {
		return ErrUnfilteredWrite
	}
	return c.do(ctx, request{
		method: http.MethodPatch,
		path:   ResourcePath(resource),
		query:  EncodeFilters(filters),
		body:   patch,
		prefer: "return=representation",
	}, dst)
}

// Delete removes the rows matching filters. At least one filter is required.
func (c *Client) Delete(ctx context.Context, resource string, filters []Filter) error {
	if len(filters) == 0 {
		return ErrUnfilteredWrite
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   ResourcePath(resource),
		query:  EncodeFilters(filters),
	}, nil)
}

// RPC invokes a remote procedure with JSON args and decodes its result.
func (c *Client) RPC(ctx context.Context, name string, args, dst any) error {
	if args == nil {
		args = struct{}{}
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   RPCPath(name),
		body:   args,
	}, dst)
}
