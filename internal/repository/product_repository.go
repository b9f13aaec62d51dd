package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/nikolayk812/slotprice/internal/domain"
	"github.com/nikolayk812/slotprice/internal/port"
	"github.com/nikolayk812/slotprice/internal/pricing"
)

const productColumns = `id, product_id, created_at, archived_at, type, sku,
	sap_code, sap_unit, sap_function_area, sap_office_code,
	name, description, price, price_tax_free, tax_percentage,
	price_type, price_period_secs, max_quantity`

type productRepository struct {
	db DBTX
}

func NewProduct(pool *pgxpool.Pool) port.ProductRepository {
	return &productRepository{db: pool}
}

func NewProductWithTx(tx pgx.Tx) port.ProductRepository {
	return &productRepository{db: tx}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	var p domain.Product

	if err := product.Validate(); err != nil {
		return p, fmt.Errorf("product.Validate: %w", err)
	}

	if product.ProductID == "" {
		product.ProductID = uuid.NewString()
	}
	if product.Type == "" {
		product.Type = domain.ProductTypeRent
	}

	created, err := insertProduct(ctx, r.db, product)
	if err != nil {
		return p, fmt.Errorf("insertProduct: %w", err)
	}

	return created, nil
}

func (r *productRepository) GetVersion(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	var p domain.Product

	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("scanProduct: %w", domain.ErrProductNotFound)
		}
		return p, fmt.Errorf("scanProduct: %w", err)
	}

	return p, nil
}

func (r *productRepository) Current(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product

	row := r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE product_id = $1 AND archived_at IS NULL`, productID)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("scanProduct: %w", domain.ErrProductNotFound)
		}
		return p, fmt.Errorf("scanProduct: %w", err)
	}

	return p, nil
}

// Replace archives the current version and inserts the merged one under
// the same product_id. Live time slots are cloned forward (the originals
// stay, archived), slot group prices are cloned onto the clones, and
// product-level group overrides plus resource links move to the new
// version. Everything happens in one transaction.
func (r *productRepository) Replace(ctx context.Context, id uuid.UUID, changes domain.ProductChanges) (domain.Product, error) {
	product, err := withTx(ctx, r.db, func(q DBTX) (domain.Product, error) {
		var p domain.Product

		current, err := (&productRepository{db: q}).GetVersion(ctx, id)
		if err != nil {
			return p, fmt.Errorf("r.GetVersion: %w", err)
		}

		if !current.IsCurrent() {
			return p, fmt.Errorf("product version %s: %w", id, domain.ErrProductNotFound)
		}

		merged := changes.Apply(current)
		if err := merged.Validate(); err != nil {
			return p, fmt.Errorf("merged.Validate: %w", err)
		}

		if _, err := q.Exec(ctx, `UPDATE products SET archived_at = now() WHERE id = $1`, id); err != nil {
			return p, fmt.Errorf("archive product: %w", err)
		}

		inserted, err := insertProduct(ctx, q, merged)
		if err != nil {
			return p, fmt.Errorf("insertProduct: %w", err)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO product_resources (product_id, resource_id)
			 SELECT $1, resource_id FROM product_resources WHERE product_id = $2`,
			inserted.ID, id); err != nil {
			return p, fmt.Errorf("copy resources: %w", err)
		}

		if _, err := q.Exec(ctx,
			`UPDATE product_customer_groups SET product_id = $1 WHERE product_id = $2`,
			inserted.ID, id); err != nil {
			return p, fmt.Errorf("re-parent customer group prices: %w", err)
		}

		if err := cloneLiveSlots(ctx, q, id, inserted.ID); err != nil {
			return p, fmt.Errorf("cloneLiveSlots: %w", err)
		}

		return inserted, nil
	})
	if err != nil {
		return product, fmt.Errorf("r.withTx: %w", err)
	}

	return product, nil
}

// cloneLiveSlots archives every live slot of the old version and inserts
// a clone under the new version, carrying each slot's customer-group
// prices onto its clone.
func cloneLiveSlots(ctx context.Context, q DBTX, oldID, newID uuid.UUID) error {
	slots, err := getTimeSlots(ctx, q, oldID, false)
	if err != nil {
		return fmt.Errorf("getTimeSlots: %w", err)
	}

	for _, slot := range slots {
		if _, err := q.Exec(ctx,
			`UPDATE time_slot_prices SET is_archived = TRUE WHERE id = $1`, slot.ID); err != nil {
			return fmt.Errorf("archive slot: %w", err)
		}

		var cloneID uuid.UUID
		err := q.QueryRow(ctx,
			`INSERT INTO time_slot_prices (product_id, begin_min, end_min, price, price_tax_free)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			newID, int(slot.Begin), int(slot.End), slot.Price.IncludingTax, slot.Price.TaxFree,
		).Scan(&cloneID)
		if err != nil {
			return fmt.Errorf("insert slot clone: %w", err)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO customer_group_time_slot_prices (time_slot_price_id, customer_group_id, price, price_tax_free)
			 SELECT $1, customer_group_id, price, price_tax_free
			 FROM customer_group_time_slot_prices WHERE time_slot_price_id = $2`,
			cloneID, slot.ID); err != nil {
			return fmt.Errorf("clone slot group prices: %w", err)
		}
	}

	return nil
}

func (r *productRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE products SET archived_at = now() WHERE id = $1 AND archived_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("archive product: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("archive product: %w", domain.ErrProductNotFound)
	}

	return nil
}

func (r *productRepository) SetResources(ctx context.Context, id uuid.UUID, resourceIDs []string) error {
	_, err := withTx(ctx, r.db, func(q DBTX) (struct{}, error) {
		if _, err := q.Exec(ctx, `DELETE FROM product_resources WHERE product_id = $1`, id); err != nil {
			return struct{}{}, fmt.Errorf("delete resources: %w", err)
		}

		for _, resourceID := range resourceIDs {
			if _, err := q.Exec(ctx,
				`INSERT INTO product_resources (product_id, resource_id) VALUES ($1, $2)`,
				id, resourceID); err != nil {
				return struct{}{}, fmt.Errorf("insert resource: %w", err)
			}
		}

		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("r.withTx: %w", err)
	}

	return nil
}

func (r *productRepository) GetResources(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT resource_id FROM product_resources WHERE product_id = $1 ORDER BY resource_id`, id)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	var resourceIDs []string
	for rows.Next() {
		var resourceID string
		if err := rows.Scan(&resourceID); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		resourceIDs = append(resourceIDs, resourceID)
	}

	return resourceIDs, rows.Err()
}

// AddTimeSlot attaches a slot to the current version of its product and
// rejects collisions with the product's live slots.
func (r *productRepository) AddTimeSlot(ctx context.Context, slot domain.TimeSlotPrice) (domain.TimeSlotPrice, error) {
	added, err := withTx(ctx, r.db, func(q DBTX) (domain.TimeSlotPrice, error) {
		var s domain.TimeSlotPrice

		if err := slot.Validate(); err != nil {
			return s, fmt.Errorf("slot.Validate: %w", err)
		}

		repo := &productRepository{db: q}

		product, err := repo.GetVersion(ctx, slot.ProductID)
		if err != nil {
			return s, fmt.Errorf("r.GetVersion: %w", err)
		}

		// live slots always attach to the current version
		if !slot.IsArchived && !product.IsCurrent() {
			product, err = repo.Current(ctx, product.ProductID)
			if err != nil {
				return s, fmt.Errorf("r.Current: %w", err)
			}
			slot.ProductID = product.ID
		}

		existing, err := getTimeSlots(ctx, q, slot.ProductID, true)
		if err != nil {
			return s, fmt.Errorf("getTimeSlots: %w", err)
		}

		if err := domain.CheckSlotCollision(product.PriceType, existing, slot); err != nil {
			return s, err
		}

		err = q.QueryRow(ctx,
			`INSERT INTO time_slot_prices (product_id, begin_min, end_min, price, price_tax_free, is_archived)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			slot.ProductID, int(slot.Begin), int(slot.End),
			slot.Price.IncludingTax, slot.Price.TaxFree, slot.IsArchived,
		).Scan(&slot.ID)
		if err != nil {
			return s, fmt.Errorf("insert slot: %w", err)
		}

		return slot, nil
	})
	if err != nil {
		return added, fmt.Errorf("r.withTx: %w", err)
	}

	return added, nil
}

func (r *productRepository) GetTimeSlots(ctx context.Context, productVersionID uuid.UUID) ([]domain.TimeSlotPrice, error) {
	return getTimeSlots(ctx, r.db, productVersionID, true)
}

func getTimeSlots(ctx context.Context, q DBTX, productVersionID uuid.UUID, includeArchived bool) ([]domain.TimeSlotPrice, error) {
	query := `SELECT id, product_id, begin_min, end_min, price, price_tax_free, is_archived
		FROM time_slot_prices WHERE product_id = $1`
	if !includeArchived {
		query += ` AND NOT is_archived`
	}
	query += ` ORDER BY begin_min, end_min`

	rows, err := q.Query(ctx, query, productVersionID)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.TimeSlotPrice
	for rows.Next() {
		var (
			s                domain.TimeSlotPrice
			beginMin, endMin int
		)
		if err := rows.Scan(&s.ID, &s.ProductID, &beginMin, &endMin,
			&s.Price.IncludingTax, &s.Price.TaxFree, &s.IsArchived); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		s.Begin = domain.ClockTime(beginMin)
		s.End = domain.ClockTime(endMin)
		slots = append(slots, s)
	}

	return slots, rows.Err()
}

func (r *productRepository) AddCustomerGroupPrice(ctx context.Context, pcg domain.ProductCustomerGroup) (domain.ProductCustomerGroup, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO product_customer_groups (product_id, customer_group_id, price, price_tax_free)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		pcg.ProductID, pcg.CustomerGroupID, pcg.Price.IncludingTax, pcg.Price.TaxFree,
	).Scan(&pcg.ID)
	if err != nil {
		return pcg, fmt.Errorf("insert product customer group: %w", err)
	}

	return pcg, nil
}

func (r *productRepository) AddCustomerGroupTimeSlotPrice(ctx context.Context, price domain.CustomerGroupTimeSlotPrice) (domain.CustomerGroupTimeSlotPrice, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO customer_group_time_slot_prices (time_slot_price_id, customer_group_id, price, price_tax_free)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		price.TimeSlotPriceID, price.CustomerGroupID, price.Price.IncludingTax, price.Price.TaxFree,
	).Scan(&price.ID)
	if err != nil {
		return price, fmt.Errorf("insert customer group slot price: %w", err)
	}

	return price, nil
}

// PricingContext loads a product version with its live slots, the slots'
// group prices and the product-level override for the given group, ready
// for the resolver.
func (r *productRepository) PricingContext(ctx context.Context, productVersionID uuid.UUID, customerGroupID string, loc *time.Location) (pricing.Context, error) {
	var c pricing.Context

	product, err := r.GetVersion(ctx, productVersionID)
	if err != nil {
		return c, fmt.Errorf("r.GetVersion: %w", err)
	}

	var groupPrice *domain.ProductCustomerGroup
	if customerGroupID != "" {
		pcg, err := r.getGroupPrice(ctx, productVersionID, customerGroupID)
		if err != nil {
			return c, fmt.Errorf("r.getGroupPrice: %w", err)
		}
		groupPrice = pcg
	}

	slots, err := getTimeSlots(ctx, r.db, productVersionID, false)
	if err != nil {
		return c, fmt.Errorf("getTimeSlots: %w", err)
	}

	groupSlotPrices, err := r.getGroupSlotPrices(ctx, lo.Map(slots,
		func(s domain.TimeSlotPrice, _ int) uuid.UUID { return s.ID }))
	if err != nil {
		return c, fmt.Errorf("r.getGroupSlotPrices: %w", err)
	}

	pricingSlots := lo.Map(slots, func(s domain.TimeSlotPrice, _ int) pricing.Slot {
		return pricing.Slot{
			TimeSlotPrice: s,
			GroupPrices:   groupSlotPrices[s.ID],
		}
	})

	return pricing.Context{
		Product:         product,
		GroupPrice:      groupPrice,
		Slots:           pricingSlots,
		CustomerGroupID: customerGroupID,
		Location:        loc,
	}, nil
}

// getGroupPrice uses first-match semantics: the pair uniqueness invariant
// is enforced here, not by a DB constraint.
func (r *productRepository) getGroupPrice(ctx context.Context, productVersionID uuid.UUID, customerGroupID string) (*domain.ProductCustomerGroup, error) {
	pcg := domain.ProductCustomerGroup{
		ProductID:       productVersionID,
		CustomerGroupID: customerGroupID,
	}

	err := r.db.QueryRow(ctx,
		`SELECT id, price, price_tax_free FROM product_customer_groups
		 WHERE product_id = $1 AND customer_group_id = $2
		 ORDER BY id LIMIT 1`,
		productVersionID, customerGroupID,
	).Scan(&pcg.ID, &pcg.Price.IncludingTax, &pcg.Price.TaxFree)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query product customer group: %w", err)
	}

	return &pcg, nil
}

func (r *productRepository) getGroupSlotPrices(ctx context.Context, slotIDs []uuid.UUID) (map[uuid.UUID][]domain.CustomerGroupTimeSlotPrice, error) {
	result := make(map[uuid.UUID][]domain.CustomerGroupTimeSlotPrice)
	if len(slotIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, time_slot_price_id, customer_group_id, price, price_tax_free
		 FROM customer_group_time_slot_prices
		 WHERE time_slot_price_id = ANY($1)
		 ORDER BY id`, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("query group slot prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.CustomerGroupTimeSlotPrice
		if err := rows.Scan(&p.ID, &p.TimeSlotPriceID, &p.CustomerGroupID,
			&p.Price.IncludingTax, &p.Price.TaxFree); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		result[p.TimeSlotPriceID] = append(result[p.TimeSlotPriceID], p)
	}

	return result, rows.Err()
}

func insertProduct(ctx context.Context, q DBTX, p domain.Product) (domain.Product, error) {
	var periodSecs *int64
	if p.PricePeriod != nil {
		periodSecs = lo.ToPtr(int64(p.PricePeriod.Seconds()))
	}

	err := q.QueryRow(ctx,
		`INSERT INTO products (product_id, type, sku, sap_code, sap_unit, sap_function_area,
			sap_office_code, name, description, price, price_tax_free, tax_percentage,
			price_type, price_period_secs, max_quantity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at`,
		p.ProductID, p.Type, p.SKU, p.SapCode, p.SapUnit, p.SapFunctionArea,
		p.SapOfficeCode, p.Name, p.Description, p.Price.IncludingTax, p.Price.TaxFree,
		p.TaxPercentage, p.PriceType, periodSecs, p.MaxQuantity,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return p, fmt.Errorf("q.QueryRow: %w", err)
	}

	p.ArchivedAt = nil

	return p, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p          domain.Product
		priceType  string
		pType      string
		periodSecs *int64
	)

	err := row.Scan(&p.ID, &p.ProductID, &p.CreatedAt, &p.ArchivedAt, &pType, &p.SKU,
		&p.SapCode, &p.SapUnit, &p.SapFunctionArea, &p.SapOfficeCode,
		&p.Name, &p.Description, &p.Price.IncludingTax, &p.Price.TaxFree, &p.TaxPercentage,
		&priceType, &periodSecs, &p.MaxQuantity)
	if err != nil {
		return p, err
	}

	p.Type = domain.ProductType(pType)
	p.PriceType = domain.PriceType(priceType)
	if periodSecs != nil {
		p.PricePeriod = lo.ToPtr(time.Duration(*periodSecs) * time.Second)
	}

	return p, nil
}
