package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrOrderNotFound は該当する注文が存在しないことを表す。
var ErrOrderNotFound = errors.New("注文が見つかりません")

// Status は注文ステータス。
type Status string

const (
	// StatusPending は受付済みで未確定の注文。新規注文はこの状態で作成される。
	StatusPending Status = "PENDING"
	// StatusConfirmed は確定済みの注文。
	StatusConfirmed Status = "CONFIRMED"
	// StatusShipped は発送済みの注文。
	StatusShipped Status = "SHIPPED"
	// StatusDelivered は配達済みの注文。
	StatusDelivered Status = "DELIVERED"
	// StatusCancelled はキャンセルされた注文。
	StatusCancelled Status = "CANCELLED"
)

// Valid はステータスが定義済みの値かどうかを返す。
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order は注文とその明細。
type Order struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Status     Status    `json:"status"`
	TotalPrice float64   `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Items      []Item    `json:"order_items"`
}

// Item は注文明細。
type Item struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// NewItem は注文作成時の明細の入力。
type NewItem struct {
	ProductID string
	Quantity  int
	Price     float64
}

// TotalPrice は明細の数量×単価の合計を返す。
func TotalPrice(items []NewItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.Price
	}
	return total
}

// Store は注文をSQLiteに保存する。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Create は注文と明細を1つのトランザクションで作成する。
func (s *Store) Create(ctx context.Context, userID string, items []NewItem) (Order, error) {
	now := s.now().UTC().Truncate(time.Second)
	ts := now.Format(time.RFC3339)
	o := Order{
		ID:         uuid.New().String(),
		UserID:     userID,
		Status:     StatusPending,
		TotalPrice: TotalPrice(items),
		CreatedAt:  now,
		UpdatedAt:  now,
		Items:      make([]Item, 0, len(items)),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_price, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, string(o.Status), o.TotalPrice, ts, ts,
	); err != nil {
		return Order{}, fmt.Errorf("注文の作成に失敗: %w", err)
	}

	for _, in := range items {
		it := Item{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Price:     in.Price,
			CreatedAt: now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price, ts,
		); err != nil {
			return Order{}, fmt.Errorf("注文明細の作成に失敗: %w", err)
		}
		o.Items = append(o.Items, it)
	}

	if err := tx.Commit(); err != nil {
		return Order{}, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return o, nil
}

// Get はIDに一致する注文を明細付きで返す。
func (s *Store) Get(ctx context.Context, id string) (Order, error) {
	var (
		o                    Order
		status               string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, total_price, created_at, updated_at FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.UserID, &status, &o.TotalPrice, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("注文の取得に失敗: %w", err)
	}
	o.Status = Status(status)
	if err := parseTimes(&o.CreatedAt, createdAt, &o.UpdatedAt, updatedAt); err != nil {
		return Order{}, err
	}

	if o.Items, err = s.items(ctx, o.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListByUser はユーザーの注文を作成日時の新しい順に明細付きで返す。
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, status, total_price, created_at, updated_at FROM orders WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗: %w", err)
	}

	orders := make([]Order, 0)
	for rows.Next() {
		var (
			o                    Order
			status               string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &status, &o.TotalPrice, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("注文の読み込みに失敗: %w", err)
		}
		o.Status = Status(status)
		if err := parseTimes(&o.CreatedAt, createdAt, &o.UpdatedAt, updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("注文一覧の読み込みに失敗: %w", err)
	}
	// インメモリDBは接続が1つのため、明細の取得前に閉じる
	rows.Close()

	for i := range orders {
		if orders[i].Items, err = s.items(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateStatus は注文ステータスを更新し、更新後の注文を返す。
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC().Truncate(time.Second).Format(time.RFC3339), id,
	)
	if err != nil {
		return Order{}, fmt.Errorf("注文ステータスの更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Order{}, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return Order{}, ErrOrderNotFound
	}
	return s.Get(ctx, id)
}

// items は注文の明細を返す。
func (s *Store) items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, price, created_at FROM order_items WHERE order_id = ? ORDER BY rowid`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文明細の取得に失敗: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var (
			it        Item
			createdAt string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &createdAt); err != nil {
			return nil, fmt.Errorf("注文明細の読み込みに失敗: %w", err)
		}
		if it.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("作成日時の解析に失敗: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("注文明細の読み込みに失敗: %w", err)
	}
	return items, nil
}

func parseTimes(created *time.Time, createdAt string, updated *time.Time, updatedAt string) error {
	var err error
	if *created, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return fmt.Errorf("作成日時の解析に失敗: %w", err)
	}
	if *updated, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return fmt.Errorf("更新日時の解析に失敗: %w", err)
	}
	return nil
}
