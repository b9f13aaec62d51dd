package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/slotprice/internal/domain"
	"github.com/nikolayk812/slotprice/internal/port"
	"github.com/nikolayk812/slotprice/internal/pricing"
)

// lockNotAvailable is the postgres error code raised by FOR UPDATE NOWAIT
// when another transaction holds the row lock.
const lockNotAvailable = "55P03"

type orderRepository struct {
	db     DBTX
	logger *slog.Logger
	hooks  []port.StateChangeHook
}

func NewOrder(pool *pgxpool.Pool, logger *slog.Logger) port.OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderRepository{db: pool, logger: logger}
}

func NewOrderWithTx(tx pgx.Tx, logger *slog.Logger) port.OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderRepository{db: tx, logger: logger}
}

func (r *orderRepository) OnStateChange(hook port.StateChangeHook) {
	r.hooks = append(r.hooks, hook)
}

func (r *orderRepository) fireHooks(orderID uuid.UUID, from, to domain.OrderState) {
	for _, hook := range r.hooks {
		hook(orderID, from, to)
	}
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	var o domain.Order

	if len(order.Lines) == 0 {
		return o, errors.New("no lines in order")
	}

	if order.OrderNumber == "" {
		order.OrderNumber = domain.NewOrderNumber()
	}
	if order.State == "" {
		order.State = domain.OrderStateWaiting
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = domain.PaymentMethodOnline
	}
	if (order.Currency == currency.Unit{}) {
		order.Currency = currency.EUR
	}

	inserted, err := withTx(ctx, r.db, func(q DBTX) (domain.Order, error) {
		err := q.QueryRow(ctx,
			`INSERT INTO orders (order_number, reservation_id, state, payment_method,
				customer_group_id, is_requested_order, confirmed_by_staff_at, price_currency)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			order.OrderNumber, order.ReservationID, order.State, order.PaymentMethod,
			nilIfEmpty(order.CustomerGroupID), order.IsRequestedOrder,
			order.ConfirmedByStaffAt, order.Currency.String(),
		).Scan(&order.ID)
		if err != nil {
			return o, fmt.Errorf("insert order: %w", err)
		}

		groupName := ""
		if order.CustomerGroupID != "" {
			group, err := (&customerGroupRepository{db: q}).Get(ctx, order.CustomerGroupID)
			if err != nil {
				return o, fmt.Errorf("r.Get customer group: %w", err)
			}
			groupName = group.Name.Default()
		}

		for i := range order.Lines {
			line, err := r.insertLine(ctx, q, order, order.Lines[i], groupName)
			if err != nil {
				return o, fmt.Errorf("r.insertLine: %w", err)
			}
			order.Lines[i] = line
		}

		err = q.QueryRow(ctx,
			`INSERT INTO order_log_entries (order_id, state_change, message)
			 VALUES ($1, $2, 'Created.')
			 RETURNING ts`,
			order.ID, order.State,
		).Scan(&order.CreatedAt)
		if err != nil {
			return o, fmt.Errorf("insert log entry: %w", err)
		}

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("r.withTx: %w", err)
	}

	return inserted, nil
}

// insertLine stores the line and freezes the customer-group price
// snapshot. A snapshot is taken when the order carries a customer group
// or when the product has any group override at all; the snapshot pair is
// the matching override's when one exists, the product's default pair
// otherwise. This is written once and never re-derived.
func (r *orderRepository) insertLine(ctx context.Context, q DBTX, order domain.Order, line domain.OrderLine, groupName string) (domain.OrderLine, error) {
	var l domain.OrderLine

	prodRepo := &productRepository{db: q}

	product, err := prodRepo.GetVersion(ctx, line.ProductID)
	if err != nil {
		return l, fmt.Errorf("r.GetVersion: %w", err)
	}

	if line.Quantity < 1 {
		line.Quantity = 1
	}
	if line.Quantity > product.MaxQuantity {
		return l, fmt.Errorf("%w: %d > %d", domain.ErrMaxQuantityExceeded, line.Quantity, product.MaxQuantity)
	}

	line.OrderID = order.ID
	err = q.QueryRow(ctx,
		`INSERT INTO order_lines (order_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		line.OrderID, line.ProductID, line.Quantity,
	).Scan(&line.ID)
	if err != nil {
		return l, fmt.Errorf("insert order line: %w", err)
	}

	var pcg *domain.ProductCustomerGroup
	if order.CustomerGroupID != "" {
		pcg, err = prodRepo.getGroupPrice(ctx, line.ProductID, order.CustomerGroupID)
		if err != nil {
			return l, fmt.Errorf("r.getGroupPrice: %w", err)
		}
	}

	var hasAnyOverride bool
	err = q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM product_customer_groups WHERE product_id = $1)`,
		line.ProductID,
	).Scan(&hasAnyOverride)
	if err != nil {
		return l, fmt.Errorf("query overrides: %w", err)
	}

	if order.CustomerGroupID == "" && !hasAnyOverride {
		return line, nil
	}

	snapshot := domain.OrderCustomerGroupData{
		CustomerGroupName:       groupName,
		Price:                   product.Price,
		PriceIsBasedOnProductCG: pcg != nil,
	}
	if pcg != nil {
		snapshot.Price = pcg.Price
	}

	if _, err := q.Exec(ctx,
		`INSERT INTO order_customer_group_data
			(order_line_id, customer_group_name, product_cg_price, product_cg_price_tax_free, price_is_based_on_product_cg)
		 VALUES ($1, $2, $3, $4, $5)`,
		line.ID, snapshot.CustomerGroupName, snapshot.Price.IncludingTax,
		snapshot.Price.TaxFree, snapshot.PriceIsBasedOnProductCG); err != nil {
		return l, fmt.Errorf("insert snapshot: %w", err)
	}

	line.CustomerGroupData = &snapshot

	return line, nil
}

func (r *orderRepository) Get(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	row := r.db.QueryRow(ctx,
		`SELECT id, order_number, reservation_id, state, payment_method,
			COALESCE(customer_group_id, ''), is_requested_order, confirmed_by_staff_at, price_currency,
			(SELECT min(ts) FROM order_log_entries e WHERE e.order_id = orders.id)
		 FROM orders WHERE id = $1`, orderID)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("scanOrder: %w", domain.ErrOrderNotFound)
		}
		return o, fmt.Errorf("scanOrder: %w", err)
	}

	lines, err := r.getLines(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("r.getLines: %w", err)
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) getLines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLine, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ol.id, ol.order_id, ol.product_id, ol.quantity,
			d.customer_group_name, d.product_cg_price, d.product_cg_price_tax_free, d.price_is_based_on_product_cg
		 FROM order_lines ol
		 LEFT JOIN order_customer_group_data d ON d.order_line_id = ol.id
		 WHERE ol.order_id = $1
		 ORDER BY ol.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var (
			line      domain.OrderLine
			name      *string
			price     *decimal.Decimal
			taxFree   *decimal.Decimal
			basedOnCG *bool
		)
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity,
			&name, &price, &taxFree, &basedOnCG); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		if price != nil {
			line.CustomerGroupData = &domain.OrderCustomerGroupData{
				CustomerGroupName:       lo.FromPtr(name),
				Price:                   domain.PricePair{IncludingTax: *price, TaxFree: lo.FromPtr(taxFree)},
				PriceIsBasedOnProductCG: lo.FromPtr(basedOnCG),
			}
		}

		lines = append(lines, line)
	}

	return lines, rows.Err()
}

type transition struct {
	from    domain.OrderState
	to      domain.OrderState
	changed bool
	fire    bool
}

// SetState performs a guarded state transition under FOR UPDATE NOWAIT.
// Losing the lock race is not an error: the competing request is already
// resolving this order, so the call logs at debug and gives up. A
// same-state change is a silent no-op, except confirmed to confirmed
// which re-fires hooks since it can represent a re-confirmation after a
// concurrent modification.
func (r *orderRepository) SetState(ctx context.Context, orderID uuid.UUID, newState domain.OrderState, message string) error {
	if _, err := domain.ToOrderState(string(newState)); err != nil {
		return fmt.Errorf("domain.ToOrderState[%s]: %w", newState, err)
	}

	result, err := withTx(ctx, r.db, func(q DBTX) (transition, error) {
		var t transition

		var orderNumber string
		err := q.QueryRow(ctx,
			`SELECT order_number, state FROM orders WHERE id = $1 FOR UPDATE NOWAIT`,
			orderID,
		).Scan(&orderNumber, &t.from)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return t, fmt.Errorf("lock order: %w", domain.ErrOrderNotFound)
			}
			return t, fmt.Errorf("lock order: %w", err)
		}

		t.to = newState

		if t.from == newState {
			t.fire = newState == domain.OrderStateConfirmed
			return t, nil
		}

		if err := domain.ValidateTransition(orderNumber, t.from, newState); err != nil {
			return t, err
		}

		if _, err := q.Exec(ctx, `UPDATE orders SET state = $2 WHERE id = $1`, orderID, newState); err != nil {
			return t, fmt.Errorf("update state: %w", err)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO order_log_entries (order_id, state_change, message) VALUES ($1, $2, $3)`,
			orderID, newState, message); err != nil {
			return t, fmt.Errorf("insert log entry: %w", err)
		}

		t.changed = true
		t.fire = true

		return t, nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
			r.logger.DebugContext(ctx, "order row locked by a concurrent transition, abandoning",
				"order_id", orderID, "new_state", newState)
			return nil
		}
		return fmt.Errorf("r.withTx: %w", err)
	}

	if result.fire {
		r.fireHooks(orderID, result.from, result.to)
	}

	return nil
}

func (r *orderRepository) SetConfirmedByStaff(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE orders SET confirmed_by_staff_at = $2 WHERE id = $1`, orderID, at)
	if err != nil {
		return fmt.Errorf("update confirmed_by_staff_at: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("update confirmed_by_staff_at: %w", domain.ErrOrderNotFound)
	}

	return nil
}

// SearchOrders returns matching orders without their lines.
func (r *orderRepository) SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter.Validate: %w", err)
	}

	states := lo.Map(filter.States, func(s domain.OrderState, _ int) string { return string(s) })
	methods := lo.Map(filter.PaymentMethods, func(m domain.PaymentMethod, _ int) string { return string(m) })

	var createdAfter, createdBefore *time.Time
	if filter.CreatedAt != nil {
		createdAfter = filter.CreatedAt.After
		createdBefore = filter.CreatedAt.Before
	}

	rows, err := r.db.Query(ctx,
		`WITH o AS (
			SELECT orders.*,
				(SELECT min(ts) FROM order_log_entries e WHERE e.order_id = orders.id) AS created_at
			FROM orders
		 )
		 SELECT id, order_number, reservation_id, state, payment_method,
			COALESCE(customer_group_id, ''), is_requested_order, confirmed_by_staff_at, price_currency, created_at
		 FROM o
		 WHERE ($1::uuid[] IS NULL OR id = ANY($1))
		   AND ($2::text[] IS NULL OR order_number = ANY($2))
		   AND ($3::text[] IS NULL OR state = ANY($3))
		   AND ($4::text[] IS NULL OR payment_method = ANY($4))
		   AND ($5::text[] IS NULL OR customer_group_id = ANY($5))
		   AND ($6::boolean IS NULL OR is_requested_order = $6)
		   AND ($7::timestamptz IS NULL OR created_at >= $7)
		   AND ($8::timestamptz IS NULL OR created_at <= $8)
		 ORDER BY created_at`,
		nilSliceIfEmpty(filter.IDs), nilSliceIfEmpty(filter.OrderNumbers),
		nilSliceIfEmpty(states), nilSliceIfEmpty(methods),
		nilSliceIfEmpty(filter.CustomerGroupIDs), filter.IsRequestedOrder,
		createdAfter, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanOrder: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// ExpireTooOld expires waiting online orders created before the waiting
// window. Requested orders have their own staff-driven flow and cash
// payments never expire, both are excluded.
func (r *orderRepository) ExpireTooOld(ctx context.Context, waitingTime time.Duration) (int, error) {
	cutoff := time.Now().Add(-waitingTime)

	orders, err := r.SearchOrders(ctx, domain.OrderFilter{
		States:           []domain.OrderState{domain.OrderStateWaiting},
		PaymentMethods:   []domain.PaymentMethod{domain.PaymentMethodOnline},
		IsRequestedOrder: lo.ToPtr(false),
		CreatedAt:        &domain.TimeRange{Before: &cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("r.SearchOrders: %w", err)
	}

	expired := 0
	for _, order := range orders {
		if err := r.SetState(ctx, order.ID, domain.OrderStateExpired, "Order expired."); err != nil {
			return expired, fmt.Errorf("r.SetState[%s]: %w", order.ID, err)
		}
		expired++
	}

	return expired, nil
}

// OrderPrice re-resolves the order total for the reservation range. Lines
// with a frozen snapshot price keep pricing against it, so the result does
// not move when the catalog does.
func (r *orderRepository) OrderPrice(ctx context.Context, orderID uuid.UUID, begin, end time.Time, loc *time.Location) (domain.Money, error) {
	var m domain.Money

	order, err := r.Get(ctx, orderID)
	if err != nil {
		return m, fmt.Errorf("r.Get: %w", err)
	}

	prodRepo := &productRepository{db: r.db}

	contexts := make(map[uuid.UUID]pricing.Context, len(order.Lines))
	for _, line := range order.Lines {
		base, err := prodRepo.PricingContext(ctx, line.ProductID, order.CustomerGroupID, loc)
		if err != nil {
			return m, fmt.Errorf("r.PricingContext[%s]: %w", line.ProductID, err)
		}
		contexts[line.ID] = base
	}

	total, err := pricing.OrderTotal(order, contexts, begin, end)
	if err != nil {
		return m, fmt.Errorf("pricing.OrderTotal: %w", err)
	}

	return total, nil
}

func (r *orderRepository) GetLogEntries(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, ts, state_change, message
		 FROM order_log_entries WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.OrderLogEntry
	for rows.Next() {
		var e domain.OrderLogEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Timestamp, &e.StateChange, &e.Message); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o            domain.Order
		currencyCode string
		createdAt    *time.Time
	)

	err := row.Scan(&o.ID, &o.OrderNumber, &o.ReservationID, &o.State, &o.PaymentMethod,
		&o.CustomerGroupID, &o.IsRequestedOrder, &o.ConfirmedByStaffAt, &currencyCode, &createdAt)
	if err != nil {
		return o, err
	}

	parsedCurrency, err := currency.ParseISO(currencyCode)
	if err != nil {
		return o, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}
	o.Currency = parsedCurrency

	o.CreatedAt = lo.FromPtr(createdAt)

	return o, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilSliceIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
