package api

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// queryRowCap bounds ad-hoc query results so a SELECT over a large
// layer table cannot blow up the response.
const queryRowCap = 10000

// RegisterStore registers the attribute-store inspection routes.
func (h *APIHandler) RegisterStore(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("store"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("store"))
}

type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"Layer attribute tables"`
	}
}

// ListTables returns the layer_* tables currently in the store.
func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("attribute store not available")
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_name LIKE 'layer_%' ORDER BY table_name`)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}

	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"SQL query to execute against the attribute store"`
	}
}

type QueryOutput struct {
	Body struct {
		Columns []string         `json:"columns" doc:"Column names"`
		Rows    []map[string]any `json:"rows" doc:"Query results"`
		Count   int              `json:"count" doc:"Number of rows returned"`
	}
}

// Query runs a read-only SQL statement against the attribute store.
func (h *APIHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("attribute store not available")
	}
	if q := strings.TrimSpace(strings.ToUpper(input.Body.Query)); !strings.HasPrefix(q, "SELECT") && !strings.HasPrefix(q, "SHOW") && !strings.HasPrefix(q, "DESCRIBE") {
		return nil, huma.Error400BadRequest("only SELECT, SHOW, and DESCRIBE statements are allowed")
	}

	rows, err := h.db.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get columns", err)
	}

	results := []map[string]any{}
	for rows.Next() && len(results) < queryRowCap {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	out := &QueryOutput{}
	out.Body.Columns = columns
	out.Body.Rows = results
	out.Body.Count = len(results)
	return out, nil
}
