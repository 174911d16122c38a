package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/solshop/backend/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "solshop_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, items []domain.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (user_id, address, status, gift_receiver_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id, created_at`
	err = tx.QueryRowContext(ctx, query,
		order.UserID,
		order.Address,
		order.Status,
		order.GiftReceiverID,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, item_id, item_name, quantity, price)
	              VALUES ($1, $2, $3, $4, $5)`
	for i := range items {
		items[i].OrderID = order.ID
		if _, err := tx.ExecContext(ctx, itemQuery,
			order.ID,
			items[i].ItemID,
			items[i].ItemName,
			items[i].Quantity,
			items[i].Price,
		); err != nil {
			return fmt.Errorf("insert order item %d: %w", items[i].ItemID, err)
		}
	}

	return tx.Commit()
}

func (r *Repository) GetOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT id, user_id, address, status, gift_receiver_id, created_at, updated_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.Address,
		&order.Status,
		&order.GiftReceiverID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return &order, nil
}

func (r *Repository) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	query := `SELECT id, user_id, address, status, gift_receiver_id, created_at, updated_at
	          FROM orders WHERE status = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("query orders by status: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Address,
			&order.Status,
			&order.GiftReceiverID,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	query := `SELECT order_id, item_id, item_name, quantity, price
	          FROM order_items WHERE order_id = $1`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.OrderID, &item.ItemID, &item.ItemName, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *Repository) GetItemStock(ctx context.Context, itemID int64) (*domain.ItemStock, error) {
	query := `SELECT id, quantity FROM items WHERE id = $1`

	var stock domain.ItemStock
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(&stock.ItemID, &stock.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item stock: %w", err)
	}
	return &stock, nil
}

func (r *Repository) ListItemStocks(ctx context.Context) ([]domain.ItemStock, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, quantity FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query item stocks: %w", err)
	}
	defer rows.Close()

	var stocks []domain.ItemStock
	for rows.Next() {
		var stock domain.ItemStock
		if err := rows.Scan(&stock.ItemID, &stock.Quantity); err != nil {
			return nil, fmt.Errorf("scan item stock row: %w", err)
		}
		stocks = append(stocks, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stocks, nil
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int32) error {
	result, err := r.db.ExecContext(ctx, `UPDATE items SET quantity = $2 WHERE id = $1`, itemID, quantity)
	if err != nil {
		return fmt.Errorf("update item quantity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repository) IncreaseSalesCount(ctx context.Context, itemID int64, quantity int32) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET sales_count = sales_count + $2 WHERE id = $1`, itemID, quantity)
	if err != nil {
		return fmt.Errorf("increase sales count: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
