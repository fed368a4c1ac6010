package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDuplicateReview = errors.New("you have already reviewed this product")

// Review: at most one per (user, product), enforced by a unique index.
type Review struct {
	ID        int64     `json:"id,string"`
	ProductID int64     `json:"product_id,string"`
	UserID    int64     `json:"user_id,string"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type ReviewsStore struct {
	db *pgxpool.Pool
}

func (s *ReviewsStore) Create(ctx context.Context, review *Review) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, review.ProductID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	query := `
	  INSERT INTO reviews (product_id, user_id, rating, comment)
	  VALUES ($1, $2, $3, $4)
	  RETURNING id, created_at
	`

	err = s.db.QueryRow(
		ctx, query, review.ProductID, review.UserID, review.Rating, review.Comment,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrDuplicateReview
			case "23503":
				return ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *ReviewsStore) ListByProduct(ctx context.Context, productID int64) ([]Review, error) {
	query := `
	  SELECT id, product_id, user_id, rating, comment, created_at
	  FROM reviews
	  WHERE product_id = $1
	  ORDER BY created_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}
