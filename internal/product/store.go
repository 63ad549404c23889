package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrProductNotFound は該当する商品が存在しないことを表す。
var ErrProductNotFound = errors.New("商品が見つかりません")

// Product はカタログに登録された商品。
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProduct は商品作成時の入力。
type NewProduct struct {
	Name        string
	Description string
	Price       float64
	Stock       int
	Category    string
}

// Patch は商品の部分更新。nilのフィールドは変更しない。
type Patch struct {
	Name        *string
	Description *string
	Price       *float64
	Stock       *int
	Category    *string
}

// Store は商品をSQLiteに保存する。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const selectProduct = `SELECT id, name, description, price, stock, category, created_at, updated_at FROM products`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// List は商品一覧を作成日時の新しい順に返す。categoryが空でなければそのカテゴリに絞り込む。
func (s *Store) List(ctx context.Context, category string) ([]Product, error) {
	query := selectProduct
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の読み込みに失敗: %w", err)
	}
	return products, nil
}

// Get はIDに一致する商品を返す。
func (s *Store) Get(ctx context.Context, id string) (Product, error) {
	return getProduct(s.db.QueryRowContext(ctx, selectProduct+` WHERE id = ?`, id))
}

// Create は商品を作成する。
func (s *Store) Create(ctx context.Context, in NewProduct) (Product, error) {
	now := s.now().UTC().Truncate(time.Second)
	p := Product{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, stock, category, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return Product{}, fmt.Errorf("商品の作成に失敗: %w", err)
	}
	return p, nil
}

// Update は指定されたフィールドのみを更新し、更新後の商品を返す。
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := getProduct(tx.QueryRowContext(ctx, selectProduct+` WHERE id = ?`, id))
	if err != nil {
		return Product{}, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	p.UpdatedAt = s.now().UTC().Truncate(time.Second)

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, stock = ?, category = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Stock, p.Category, p.UpdatedAt.Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return Product{}, fmt.Errorf("商品の更新に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Product{}, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return p, nil
}

// Delete は商品を削除する。
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("商品の削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func getProduct(row *sql.Row) (Product, error) {
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p                    Product
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("商品の読み込みに失敗: %w", err)
	}

	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Product{}, fmt.Errorf("作成日時の解析に失敗: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Product{}, fmt.Errorf("更新日時の解析に失敗: %w", err)
	}
	return p, nil
}
