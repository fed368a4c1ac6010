package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Product struct {
	ID          int64     `json:"id,string"`
	SellerID    int64     `json:"seller_id,string"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Location    string    `json:"location"`
	Images      []string  `json:"images"`
	AvgRating   float64   `json:"avg_rating"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductPatch carries the fields a partial update may touch. Nil means
// "leave unchanged". Free-form patch maps are deliberately not accepted.
type ProductPatch struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0"`
	Description *string   `json:"description"`
	Category    *string   `json:"category" validate:"omitempty,min=1,max=100"`
	Stock       *int      `json:"stock" validate:"omitempty,gte=0"`
	Location    *string   `json:"location"`
	Images      *[]string `json:"images"`
}

type ProductFilter struct {
	Category  string
	Search    string
	SortBy    string // price_asc | price_desc | newest
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	Limit     int
	Offset    int
}

const productColumns = `
	p.id, p.seller_id, p.name, p.price, p.description, p.category, p.stock,
	p.location, p.images,
	COALESCE((SELECT AVG(r.rating) FROM reviews r WHERE r.product_id = p.id), 0) AS avg_rating,
	p.created_at, p.updated_at`

type ProductsStore struct {
	db *pgxpool.Pool
}

func (s *ProductsStore) Create(ctx context.Context, p *Product) error {
	query := `
	  INSERT INTO products (seller_id, name, price, description, category, stock, location, images)
	  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	  RETURNING id, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.db.QueryRow(
		ctx, query,
		p.SellerID, p.Name, p.Price, p.Description, p.Category, p.Stock, p.Location, p.Images,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *ProductsStore) GetByID(ctx context.Context, productID int64) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var p Product
	err := s.db.QueryRow(ctx, query, productID).Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Description, &p.Category, &p.Stock,
		&p.Location, &p.Images, &p.AvgRating, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func sortClause(sortBy string) string {
	switch sortBy {
	case "price_asc":
		return "p.price ASC"
	case "price_desc":
		return "p.price DESC"
	default: // newest
		return "p.created_at DESC"
	}
}

func (s *ProductsStore) List(ctx context.Context, f ProductFilter) ([]Product, error) {
	query := `
	  SELECT ` + productColumns + `
	  FROM products p
	  WHERE ($1 = '' OR p.category = $1)
	    AND ($2 = '' OR p.name ILIKE '%' || $2 || '%' OR p.description ILIKE '%' || $2 || '%')
	  ORDER BY ` + sortClause(f.SortBy) + `
	  LIMIT $3 OFFSET $4
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, f.Category, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Search runs full-text first and falls back to a case-insensitive substring
// match on name/description when the text index finds nothing. The category,
// price and rating filters apply the same way on both paths.
func (s *ProductsStore) Search(ctx context.Context, query string, f ProductFilter) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	filters := `
	    AND ($2 = '' OR p.category = $2)
	    AND ($3::numeric IS NULL OR p.price >= $3)
	    AND ($4::numeric IS NULL OR p.price <= $4)
	  `
	ratingFilter := `
	  SELECT * FROM matched m
	  WHERE ($5::numeric IS NULL OR m.avg_rating >= $5)
	  `

	fullText := `
	  WITH matched AS (
	    SELECT ` + productColumns + `,
	      ts_rank(to_tsvector('simple', p.name || ' ' || p.description), plainto_tsquery('simple', $1)) AS rank
	    FROM products p
	    WHERE to_tsvector('simple', p.name || ' ' || p.description) @@ plainto_tsquery('simple', $1)
	  ` + filters + `
	  )
	  ` + ratingFilter + `
	  ORDER BY m.rank DESC
	  LIMIT $6 OFFSET $7
	`

	products, err := s.searchQuery(ctx, fullText, query, f)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		return products, nil
	}

	fallback := `
	  WITH matched AS (
	    SELECT ` + productColumns + `, 0::float4 AS rank
	    FROM products p
	    WHERE (p.name ILIKE '%' || $1 || '%' OR p.description ILIKE '%' || $1 || '%')
	  ` + filters + `
	  )
	  ` + ratingFilter + `
	  ORDER BY m.created_at DESC
	  LIMIT $6 OFFSET $7
	`

	return s.searchQuery(ctx, fallback, query, f)
}

func (s *ProductsStore) searchQuery(ctx context.Context, query, text string, f ProductFilter) ([]Product, error) {
	rows, err := s.db.Query(ctx, query, text, f.Category, f.MinPrice, f.MaxPrice, f.MinRating, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		var rank float32
		if err := rows.Scan(
			&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Description, &p.Category, &p.Stock,
			&p.Location, &p.Images, &p.AvgRating, &p.CreatedAt, &p.UpdatedAt, &rank,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *ProductsStore) ListBySeller(ctx context.Context, sellerID int64) ([]Product, error) {
	query := `
	  SELECT ` + productColumns + `
	  FROM products p
	  WHERE p.seller_id = $1
	  ORDER BY p.created_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *ProductsStore) Update(ctx context.Context, productID int64, patch ProductPatch) (*Product, error) {
	setClauses := []string{}
	args := []any{productID}
	arg := 2

	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, arg))
		args = append(args, value)
		arg++
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.Images != nil {
		add("images", *patch.Images)
	}

	if len(setClauses) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(
		"UPDATE products SET %s WHERE id = $1", strings.Join(setClauses, ", "),
	)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	return s.GetByID(ctx, productID)
}

func (s *ProductsStore) Delete(ctx context.Context, productID int64) error {
	query := `DELETE FROM products WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductsStore) AddImage(ctx context.Context, productID int64, url string) error {
	query := `UPDATE products SET images = array_append(images, $2), updated_at = NOW() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, productID, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductsStore) RemoveImage(ctx context.Context, productID int64, url string) error {
	query := `UPDATE products SET images = array_remove(images, $2), updated_at = NOW() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, productID, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Description, &p.Category, &p.Stock,
			&p.Location, &p.Images, &p.AvgRating, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
