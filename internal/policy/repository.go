package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested policy does not exist.
var ErrNotFound = errors.New("policy: not found")

// Repository provides PostgreSQL backed persistence for policies. Set-valued
// columns are stored as JSONB.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const policyColumns = `id, name, actions, resources, roles, conditions, effect, category, message, created_at, updated_at`

// List returns all policies ordered by name.
func (r *Repository) List(ctx context.Context) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+policyColumns+` FROM policies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// Get fetches a policy by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Policy, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+policyColumns+` FROM policies WHERE id=$1`, id)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, ErrNotFound
		}
		return Policy{}, err
	}
	return p, nil
}

// Create inserts a policy, idempotent on the unique name. On a name conflict
// the existing definition is kept, so the full stored row is read back rather
// than echoing the caller's input.
func (r *Repository) Create(ctx context.Context, p Policy) (Policy, error) {
	actions, resources, roles, conditions, err := marshalSets(p)
	if err != nil {
		return Policy{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO policies (name, actions, resources, roles, conditions, effect, category, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING `+policyColumns,
		p.Name, actions, resources, roles, conditions, string(p.Effect), string(p.Category), p.Message)
	return scanPolicy(row)
}

// Update replaces a policy's definition.
func (r *Repository) Update(ctx context.Context, p Policy) (Policy, error) {
	actions, resources, roles, conditions, err := marshalSets(p)
	if err != nil {
		return Policy{}, err
	}
	err = r.pool.QueryRow(ctx, `UPDATE policies
SET actions=$2, resources=$3, roles=$4, conditions=$5, effect=$6, category=$7, message=$8, updated_at=NOW()
WHERE id=$1
RETURNING name, created_at, updated_at`,
		p.ID, actions, resources, roles, conditions, string(p.Effect), string(p.Category), p.Message).
		Scan(&p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, ErrNotFound
		}
		return Policy{}, err
	}
	return p, nil
}

// Delete removes a policy by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM policies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalSets(p Policy) (actions, resources, roles, conditions []byte, err error) {
	if actions, err = json.Marshal(emptyIfNil(p.Actions)); err != nil {
		return
	}
	if resources, err = json.Marshal(emptyIfNil(p.Resources)); err != nil {
		return
	}
	if roles, err = json.Marshal(emptyIfNil(p.Roles)); err != nil {
		return
	}
	if p.Conditions == nil {
		p.Conditions = []Condition{}
	}
	conditions, err = json.Marshal(p.Conditions)
	return
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanPolicy(row pgx.Row) (Policy, error) {
	var p Policy
	var actions, resources, roles, conditions []byte
	var effect, category string
	if err := row.Scan(&p.ID, &p.Name, &actions, &resources, &roles, &conditions, &effect, &category, &p.Message, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Policy{}, err
	}
	p.Effect = Effect(effect)
	p.Category = Category(category)
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{actions, &p.Actions},
		{resources, &p.Resources},
		{roles, &p.Roles},
		{conditions, &p.Conditions},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return Policy{}, fmt.Errorf("policy: decode stored set: %w", err)
		}
	}
	return p, nil
}
