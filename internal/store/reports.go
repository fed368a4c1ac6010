package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Report is a moderation ticket against a product. Identical reports are
// allowed to pile up; there is no uniqueness constraint.
type Report struct {
	ID        int64     `json:"id,string"`
	ProductID int64     `json:"product_id,string"`
	UserID    int64     `json:"user_id,string"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportsStore struct {
	db *pgxpool.Pool
}

func (s *ReportsStore) Create(ctx context.Context, report *Report) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, report.ProductID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	report.Status = ReportPending

	query := `
	  INSERT INTO reports (product_id, user_id, reason, status)
	  VALUES ($1, $2, $3, $4)
	  RETURNING id, created_at
	`

	err = s.db.QueryRow(
		ctx, query, report.ProductID, report.UserID, report.Reason, report.Status,
	).Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *ReportsStore) List(ctx context.Context, status string, limit, offset int) ([]Report, error) {
	query := `
	  SELECT id, product_id, COALESCE(user_id, 0), reason, status, created_at
	  FROM reports
	  WHERE ($1 = '' OR status = $1)
	  ORDER BY created_at DESC
	  LIMIT $2 OFFSET $3
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Reason, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *ReportsStore) SetStatus(ctx context.Context, reportID int64, status string) (*Report, error) {
	if !ValidReportStatus(status) {
		return nil, ErrInvalidStatus
	}

	query := `
	  UPDATE reports SET status = $2 WHERE id = $1
	  RETURNING id, product_id, COALESCE(user_id, 0), reason, status, created_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var r Report
	err := s.db.QueryRow(ctx, query, reportID, status).Scan(
		&r.ID, &r.ProductID, &r.UserID, &r.Reason, &r.Status, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}
