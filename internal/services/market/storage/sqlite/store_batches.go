package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/granarylabs/granary/internal/services/market/domain"
	"github.com/granarylabs/granary/internal/services/market/storage"
	"github.com/shopspring/decimal"
)

// execer abstracts *sql.DB and *sql.Tx so quantity mutations can run either
// standalone or inside an order transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const batchColumns = `batch_id, seller_id, supplier,
       moisture, broken_kernels, foreign_matter, aflatoxin_ppb,
       is_on_market, price_per_kg, available_quantity_g, listed_quantity_g,
       listed_at, created_at, updated_at`

// CreateBatch inserts one batch record.
func (s *Store) CreateBatch(ctx context.Context, batch domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	batchID := strings.TrimSpace(batch.ID)
	if batchID == "" {
		return fmt.Errorf("batch id is required")
	}
	availableGrams, err := toGrams(batch.AvailableQuantity)
	if err != nil {
		return err
	}
	listedGrams, err := toGrams(batch.ListedQuantity)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO batches (
		   batch_id, seller_id, supplier,
		   moisture, broken_kernels, foreign_matter, aflatoxin_ppb,
		   is_on_market, price_per_kg, available_quantity_g, listed_quantity_g,
		   listed_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID,
		batch.SellerID,
		batch.Supplier,
		batch.Measurements.Moisture,
		batch.Measurements.BrokenKernels,
		batch.Measurements.ForeignMatter,
		batch.Measurements.Aflatoxin,
		boolToInt(batch.IsOnMarket),
		batch.PricePerKg.String(),
		availableGrams,
		listedGrams,
		toMillisPtr(batch.ListedAt),
		toMillis(batch.CreatedAt),
		toMillis(batch.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// GetBatch returns one batch by ID.
func (s *Store) GetBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return domain.Batch{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Batch{}, fmt.Errorf("storage is not configured")
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return domain.Batch{}, fmt.Errorf("batch id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+batchColumns+` FROM batches WHERE batch_id = ?`,
		batchID,
	)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Batch{}, storage.ErrNotFound
		}
		return domain.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// ReserveQuantity atomically checks and decrements the available quantity.
// The guard and the decrement are a single UPDATE, so concurrent reservations
// for the last units cannot both succeed.
func (s *Store) ReserveQuantity(ctx context.Context, batchID string, quantity decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return reserveQuantityExec(ctx, s.sqlDB, batchID, quantity, time.Now().UTC())
}

func reserveQuantityExec(ctx context.Context, ex execer, batchID string, quantity decimal.Decimal, now time.Time) error {
	grams, err := toGrams(quantity)
	if err != nil {
		return err
	}
	if grams <= 0 {
		return fmt.Errorf("reserve quantity must be positive")
	}

	result, err := ex.ExecContext(
		ctx,
		`UPDATE batches
		    SET available_quantity_g = available_quantity_g - ?,
		        updated_at = ?
		  WHERE batch_id = ?
		    AND is_on_market = 1
		    AND available_quantity_g >= ?`,
		grams,
		toMillis(now),
		strings.TrimSpace(batchID),
		grams,
	)
	if err != nil {
		return fmt.Errorf("reserve quantity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve quantity rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// The guarded update missed; inspect the row to report why.
	var onMarket int
	row := ex.QueryRowContext(ctx, `SELECT is_on_market FROM batches WHERE batch_id = ?`, strings.TrimSpace(batchID))
	if err := row.Scan(&onMarket); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("inspect batch: %w", err)
	}
	if onMarket == 0 {
		return storage.ErrNotListed
	}
	return storage.ErrInsufficientQuantity
}

// ReleaseQuantity returns quantity to the batch, capped at the listed
// baseline so a release can never inflate the ledger.
func (s *Store) ReleaseQuantity(ctx context.Context, batchID string, quantity decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return releaseQuantityExec(ctx, s.sqlDB, batchID, quantity, time.Now().UTC())
}

func releaseQuantityExec(ctx context.Context, ex execer, batchID string, quantity decimal.Decimal, now time.Time) error {
	grams, err := toGrams(quantity)
	if err != nil {
		return err
	}
	if grams <= 0 {
		return fmt.Errorf("release quantity must be positive")
	}

	result, err := ex.ExecContext(
		ctx,
		`UPDATE batches
		    SET available_quantity_g = MIN(listed_quantity_g, available_quantity_g + ?),
		        updated_at = ?
		  WHERE batch_id = ?`,
		grams,
		toMillis(now),
		strings.TrimSpace(batchID),
	)
	if err != nil {
		return fmt.Errorf("release quantity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release quantity rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RelistBatch resets the listing baseline, price, and market flag. It fails
// while any order on the batch is still open; sellers must wait for orders to
// reach a terminal state (or cancel them) before relisting.
func (s *Store) RelistBatch(ctx context.Context, batchID string, quantity decimal.Decimal, pricePerKg decimal.Decimal, listedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	grams, err := toGrams(quantity)
	if err != nil {
		return err
	}
	batchID = strings.TrimSpace(batchID)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin relist: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback relist: %v", cause, rollbackErr)
		}
		return cause
	}

	var open int
	row := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM orders
		  WHERE batch_id = ? AND status NOT IN ('delivered', 'rejected', 'cancelled')`,
		batchID,
	)
	if err := row.Scan(&open); err != nil {
		return rollbackWith(fmt.Errorf("count open orders: %w", err))
	}
	if open > 0 {
		return rollbackWith(storage.ErrOpenOrders)
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE batches
		    SET is_on_market = 1,
		        price_per_kg = ?,
		        available_quantity_g = ?,
		        listed_quantity_g = ?,
		        listed_at = ?,
		        updated_at = ?
		  WHERE batch_id = ?`,
		pricePerKg.String(),
		grams,
		grams,
		toMillis(listedAt),
		toMillis(listedAt),
		batchID,
	)
	if err != nil {
		return rollbackWith(fmt.Errorf("relist batch: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return rollbackWith(fmt.Errorf("relist batch rows: %w", err))
	}
	if affected == 0 {
		return rollbackWith(storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit relist: %w", err)
	}
	return nil
}

// DelistBatch clears the market flag. Outstanding orders are unaffected.
func (s *Store) DelistBatch(ctx context.Context, batchID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE batches SET is_on_market = 0, updated_at = ? WHERE batch_id = ?`,
		toMillis(time.Now().UTC()),
		strings.TrimSpace(batchID),
	)
	if err != nil {
		return fmt.Errorf("delist batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delist batch rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListMarketBatches returns one page of listed batches matching the query.
func (s *Store) ListMarketBatches(ctx context.Context, query storage.MarketQuery) (storage.MarketPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.MarketPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MarketPage{}, fmt.Errorf("storage is not configured")
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		return storage.MarketPage{}, fmt.Errorf("page size must be greater than zero")
	}

	where := []string{"is_on_market = 1"}
	var args []any
	if query.MinPrice != nil {
		where = append(where, "CAST(price_per_kg AS REAL) >= ?")
		args = append(args, query.MinPrice.InexactFloat64())
	}
	if query.MaxPrice != nil {
		where = append(where, "CAST(price_per_kg AS REAL) <= ?")
		args = append(args, query.MaxPrice.InexactFloat64())
	}
	if query.MinQuantity != nil {
		grams, err := toGrams(*query.MinQuantity)
		if err != nil {
			return storage.MarketPage{}, err
		}
		where = append(where, "available_quantity_g >= ?")
		args = append(args, grams)
	}
	if supplier := strings.TrimSpace(query.Supplier); supplier != "" {
		where = append(where, "LOWER(supplier) = LOWER(?)")
		args = append(args, supplier)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE `+whereClause, args...)
	if err := row.Scan(&total); err != nil {
		return storage.MarketPage{}, fmt.Errorf("count market batches: %w", err)
	}

	orderBy := marketOrderClause(query.SortBy, query.Descending)
	pagedArgs := append(args, query.PageSize, (query.Page-1)*query.PageSize)
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+batchColumns+` FROM batches WHERE `+whereClause+
			` ORDER BY `+orderBy+` LIMIT ? OFFSET ?`,
		pagedArgs...,
	)
	if err != nil {
		return storage.MarketPage{}, fmt.Errorf("list market batches: %w", err)
	}
	defer rows.Close()

	page := storage.MarketPage{
		Batches:    make([]domain.Batch, 0, query.PageSize),
		Total:      total,
		TotalPages: (total + query.PageSize - 1) / query.PageSize,
	}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return storage.MarketPage{}, fmt.Errorf("list market batches: %w", err)
		}
		page.Batches = append(page.Batches, batch)
	}
	if err := rows.Err(); err != nil {
		return storage.MarketPage{}, fmt.Errorf("list market batches: %w", err)
	}
	return page, nil
}

func marketOrderClause(sortBy storage.MarketSort, descending bool) string {
	var column string
	switch sortBy {
	case storage.MarketSortPrice:
		column = "CAST(price_per_kg AS REAL)"
	case storage.MarketSortQuantity:
		column = "available_quantity_g"
	default:
		column = "listed_at"
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}
	// batch_id breaks ties so pagination is stable.
	return column + " " + direction + ", batch_id ASC"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (domain.Batch, error) {
	var batch domain.Batch
	var onMarket int
	var price string
	var availableGrams, listedGrams int64
	var listedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&batch.ID,
		&batch.SellerID,
		&batch.Supplier,
		&batch.Measurements.Moisture,
		&batch.Measurements.BrokenKernels,
		&batch.Measurements.ForeignMatter,
		&batch.Measurements.Aflatoxin,
		&onMarket,
		&price,
		&availableGrams,
		&listedGrams,
		&listedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Batch{}, err
	}

	batch.IsOnMarket = onMarket == 1
	batch.PricePerKg, err = parsePrice(price)
	if err != nil {
		return domain.Batch{}, err
	}
	batch.AvailableQuantity = fromGrams(availableGrams)
	batch.ListedQuantity = fromGrams(listedGrams)
	batch.ListedAt = fromMillisPtr(listedAt)
	batch.CreatedAt = fromMillis(createdAt)
	batch.UpdatedAt = fromMillis(updatedAt)
	return batch, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
