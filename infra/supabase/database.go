package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const databaseService = "database"

// DatabaseClient handles Supabase Database (PostgREST) operations.
type DatabaseClient struct {
	client *Client
}

// From starts a query builder for a table.
func (d *DatabaseClient) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  d.client,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		filters: make([]string, 0),
		headers: make(map[string]string),
	}
}

// =============================================================================
// Query Builder
// =============================================================================

// QueryBuilder builds and executes database queries.
type QueryBuilder struct {
	client         *Client
	table          string
	method         string
	columns        string
	selectExplicit bool
	filters        []string
	orders         []string
	limitVal       *int
	body           []byte
	err            error
	headers        map[string]string
	single         bool
	maybeSingle    bool
	accessToken    string
}

// Select specifies columns to select. On writes it shapes the returned representation.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	q.selectExplicit = true
	return q
}

// Insert inserts records.
func (q *QueryBuilder) Insert(data any) *QueryBuilder {
	q.method = http.MethodPost
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Update updates records matching the filters.
func (q *QueryBuilder) Update(data any) *QueryBuilder {
	q.method = http.MethodPatch
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Delete deletes records matching the filters.
func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = http.MethodDelete
	q.headers["Prefer"] = "return=minimal"
	return q
}

func (q *QueryBuilder) setBody(data any) {
	body, err := json.Marshal(data)
	if err != nil {
		q.err = fmt.Errorf("marshal body: %w", err)
		return
	}
	q.body = body
}

// =============================================================================
// Filters
// =============================================================================

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return q.Filter(column, OpEq, value)
}

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return q.Filter(column, OpNeq, value)
}

// Filter adds a filter with an arbitrary operator. The value is query-escaped.
func (q *QueryBuilder) Filter(column string, op FilterOperator, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=%s.%s", column, op, url.QueryEscape(fmt.Sprintf("%v", value))))
	return q
}

// =============================================================================
// Ordering and Pagination
// =============================================================================

// Order adds an order clause.
func (q *QueryBuilder) Order(column string, opts ...OrderDirection) *QueryBuilder {
	dir := OrderAsc
	if len(opts) > 0 {
		dir = opts[0]
	}
	q.orders = append(q.orders, fmt.Sprintf("%s.%s", column, dir))
	return q
}

// Limit sets the maximum number of rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limitVal = &n
	return q
}

// Single expects exactly one row; PostgREST answers 406 otherwise.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	q.headers["Accept"] = "application/vnd.pgrst.object+json"
	return q
}

// MaybeSingle expects at most one row. Execute returns ErrNoRows when none matched.
func (q *QueryBuilder) MaybeSingle() *QueryBuilder {
	q.maybeSingle = true
	return q
}

// WithToken sets the access token for RLS.
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	q.accessToken = token
	return q
}

// =============================================================================
// Execution
// =============================================================================

// Execute executes the query and returns raw bytes.
func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	if q.err != nil {
		return nil, q.err
	}

	respBody, statusCode, err := q.client.request(ctx, databaseService, q.method, q.buildURL(), q.body, q.headers, q.accessToken)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	if q.maybeSingle {
		return pickOne(respBody)
	}

	return respBody, nil
}

// ExecuteInto executes the query and unmarshals into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest any) error {
	data, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if dest == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// buildURL builds the request URL.
func (q *QueryBuilder) buildURL() string {
	urlStr := q.client.restURL + "/" + url.PathEscape(q.table)

	params := make([]string, 0)

	if q.columns != "" && (q.method == http.MethodGet || q.selectExplicit) {
		params = append(params, "select="+url.QueryEscape(q.columns))
	}

	params = append(params, q.filters...)

	if len(q.orders) > 0 {
		params = append(params, "order="+strings.Join(q.orders, ","))
	}

	if q.limitVal != nil {
		params = append(params, fmt.Sprintf("limit=%d", *q.limitVal))
	}

	if len(params) > 0 {
		urlStr += "?" + strings.Join(params, "&")
	}

	return urlStr
}

func pickOne(body []byte) ([]byte, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	switch len(rows) {
	case 0:
		return nil, ErrNoRows
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("expected at most one row, got %d", len(rows))
	}
}
