package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikolayk812/slotprice/internal/domain"
	"github.com/nikolayk812/slotprice/internal/port"
)

type customerGroupRepository struct {
	db DBTX
}

func NewCustomerGroup(pool *pgxpool.Pool) port.CustomerGroupRepository {
	return &customerGroupRepository{db: pool}
}

func NewCustomerGroupWithTx(tx pgx.Tx) port.CustomerGroupRepository {
	return &customerGroupRepository{db: tx}
}

func (r *customerGroupRepository) Create(ctx context.Context, group domain.CustomerGroup) (domain.CustomerGroup, error) {
	var g domain.CustomerGroup

	if group.ID == "" {
		return g, errors.New("customer group id is empty")
	}

	nameJSON, err := json.Marshal(group.Name)
	if err != nil {
		return g, fmt.Errorf("json.Marshal name: %w", err)
	}

	created, err := withTx(ctx, r.db, func(q DBTX) (domain.CustomerGroup, error) {
		if _, err := q.Exec(ctx,
			`INSERT INTO customer_groups (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			group.ID, nameJSON); err != nil {
			return g, fmt.Errorf("insert customer group: %w", err)
		}

		if _, err := q.Exec(ctx,
			`DELETE FROM customer_group_login_methods WHERE customer_group_id = $1`,
			group.ID); err != nil {
			return g, fmt.Errorf("delete login methods: %w", err)
		}

		for _, method := range group.OnlyForLoginMethods {
			if _, err := q.Exec(ctx,
				`INSERT INTO customer_group_login_methods (customer_group_id, login_method_id, name)
				 VALUES ($1, $2, $3)`,
				group.ID, method.ID, method.Name); err != nil {
				return g, fmt.Errorf("insert login method: %w", err)
			}
		}

		return group, nil
	})
	if err != nil {
		return g, fmt.Errorf("r.withTx: %w", err)
	}

	return created, nil
}

func (r *customerGroupRepository) Get(ctx context.Context, id string) (domain.CustomerGroup, error) {
	var g domain.CustomerGroup

	var nameJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, name FROM customer_groups WHERE id = $1`, id,
	).Scan(&g.ID, &nameJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return g, fmt.Errorf("query customer group: %w", domain.ErrCustomerGroupNotFound)
		}
		return g, fmt.Errorf("query customer group: %w", err)
	}

	if err := json.Unmarshal(nameJSON, &g.Name); err != nil {
		return g, fmt.Errorf("json.Unmarshal name: %w", err)
	}

	methods, err := r.getLoginMethods(ctx, id)
	if err != nil {
		return g, fmt.Errorf("r.getLoginMethods: %w", err)
	}
	g.OnlyForLoginMethods = methods

	return g, nil
}

func (r *customerGroupRepository) List(ctx context.Context) ([]domain.CustomerGroup, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM customer_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query customer groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.CustomerGroup
	for rows.Next() {
		var (
			g        domain.CustomerGroup
			nameJSON []byte
		)
		if err := rows.Scan(&g.ID, &nameJSON); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		if err := json.Unmarshal(nameJSON, &g.Name); err != nil {
			return nil, fmt.Errorf("json.Unmarshal name: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	for i := range groups {
		methods, err := r.getLoginMethods(ctx, groups[i].ID)
		if err != nil {
			return nil, fmt.Errorf("r.getLoginMethods[%s]: %w", groups[i].ID, err)
		}
		groups[i].OnlyForLoginMethods = methods
	}

	return groups, nil
}

func (r *customerGroupRepository) getLoginMethods(ctx context.Context, groupID string) ([]domain.LoginMethod, error) {
	rows, err := r.db.Query(ctx,
		`SELECT login_method_id, name FROM customer_group_login_methods
		 WHERE customer_group_id = $1 ORDER BY login_method_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query login methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.LoginMethod
	for rows.Next() {
		var m domain.LoginMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		methods = append(methods, m)
	}

	return methods, rows.Err()
}
