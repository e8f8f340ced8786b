package export

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// fetchCap bounds how many records a single export may pull.
const fetchCap = 100000

// filterField constrains filter keys to plain column identifiers. Values are
// always bound as parameters, never interpolated.
var filterField = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLSource serves export data from an allowlist of platform tables. Resource
// types outside the allowlist are rejected before any SQL runs.
type SQLSource struct {
	pool   *pgxpool.Pool
	tables map[string]string
}

// NewSQLSource builds a source over the given resource-type to table mapping.
func NewSQLSource(pool *pgxpool.Pool, tables map[string]string) *SQLSource {
	return &SQLSource{pool: pool, tables: tables}
}

func (s *SQLSource) table(resourceType string) (string, error) {
	table, ok := s.tables[resourceType]
	if !ok {
		return "", fmt.Errorf("export: unknown resource type %q", resourceType)
	}
	return table, nil
}

// filterClause renders the caller's filters as an equality WHERE clause over
// sorted keys. A key that is not a plain identifier rejects the whole request.
func filterClause(filters map[string]any) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var sb strings.Builder
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !filterField.MatchString(key) {
			return "", nil, fmt.Errorf("export: invalid filter field %q", key)
		}
		if len(args) == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, filters[key])
		fmt.Fprintf(&sb, "%s = $%d", key, len(args))
	}
	return sb.String(), args, nil
}

// Count returns the number of records the filters select.
func (s *SQLSource) Count(ctx context.Context, resourceType string, filters map[string]any) (int, error) {
	table, err := s.table(resourceType)
	if err != nil {
		return 0, err
	}
	clause, args, err := filterClause(filters)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+clause, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Fetch loads the filtered records as generic rows.
func (s *SQLSource) Fetch(ctx context.Context, resourceType string, filters map[string]any) ([]map[string]any, error) {
	table, err := s.table(resourceType)
	if err != nil {
		return nil, err
	}
	clause, args, err := filterClause(filters)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT row_to_json(t) FROM %s t%s LIMIT %d`, table, clause, fetchCap)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
