package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// statusErr is the status SurrealDB reports for a failed statement.
const statusErr = "ERR"

// Query executes a SurrealQL script and decodes the result of its last
// statement into a slice of T. Scripts with several statements (for example a
// CREATE followed by a SELECT) therefore return what the final SELECT yields.
//
// Example:
//
//	query := "SELECT user_id, username FROM user WHERE username = $username"
//	users, err := Query[userRow](ctx, db, query, map[string]any{"username": "alice"})
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	results, err := surrealdb.Query[any](ctx, db, query, params)
	if err != nil {
		return nil, classify(NewDBError(err, "query execution failed").WithQuery(query))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	for _, r := range *results {
		if strings.EqualFold(r.Status, statusErr) {
			cause := fmt.Errorf("%w: %v", ErrQueryFailed, r.Result)
			return nil, classify(NewDBError(cause, "statement failed").WithQuery(query))
		}
	}

	last := (*results)[len(*results)-1]
	rows, err := decodeRows[T](last.Result)
	if err != nil {
		return nil, NewDBError(err, "decode query result").WithQuery(query)
	}
	return rows, nil
}

// QueryOne executes a query and returns its first row, or nil when there is none.
func QueryOne[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) (*T, error) {
	// CREATE/UPDATE/DELETE statements don't support LIMIT.
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") && !hasLimitClause(query) {
		query += " LIMIT 1"
	}

	results, err := Query[T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// Execute runs statements whose results are not needed.
func Execute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	_, err := Query[any](ctx, db, query, params)
	return err
}

// decodeRows converts a generic statement result into []T through JSON. A
// single object result becomes a one-element slice.
func decodeRows[T any](result any) ([]T, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "[") {
		data = []byte("[" + trimmed + "]")
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return rows, nil
}

// hasLimitClause checks if the query already has a LIMIT clause
func hasLimitClause(query string) bool {
	query = " " + strings.ToUpper(query) + " "
	return strings.Contains(query, " LIMIT ")
}
