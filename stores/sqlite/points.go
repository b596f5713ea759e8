// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mdhender/blogbatch/model"
)

// dayStart returns midnight UTC of the day containing t.
func dayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// countCompletions returns how many posts handle completed since the start of the UTC day.
func countCompletions(ctx context.Context, q queryRower, handle string, now time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM activity_logs
		WHERE user_id = ? AND action = ? AND created_at >= ?
	`
	var n int
	if err := q.QueryRowContext(ctx, query, handle, ActionComplete, formatTime(dayStart(now))).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) checkDailyLimit(ctx context.Context, tx *sql.Tx, handle string, now time.Time) error {
	if s.dailyLimit == 0 {
		return nil
	}
	n, err := countCompletions(ctx, tx, handle, now)
	if err != nil {
		return err
	}
	if n >= s.dailyLimit {
		return fmt.Errorf("%s completed %d of %d today: %w", handle, n, s.dailyLimit, ErrDailyLimit)
	}
	return nil
}

// DailyWorkCount returns handle's completions for the current UTC day.
func (s *SQLiteStore) DailyWorkCount(ctx context.Context, handle string) (model.WorkCount, error) {
	n, err := countCompletions(ctx, s.db, handle, time.Now())
	if err != nil {
		return model.WorkCount{}, err
	}
	wc := model.WorkCount{Current: n}
	if s.dailyLimit > 0 {
		wc.Max = s.dailyLimit
		wc.Remaining = max(s.dailyLimit-n, 0)
	}
	return wc, nil
}

// awardApprovalPoints credits the assignee of an approved post. Posts without
// an assignee, or assignees who are not users, earn nothing.
func awardApprovalPoints(ctx context.Context, tx *sql.Tx, postID int64, ps postState, now time.Time) error {
	if ps.assignedTo == "" {
		return nil
	}
	var amount int64
	err := tx.QueryRowContext(ctx, `SELECT blog_approval_points FROM users WHERE handle = ?`, ps.assignedTo).Scan(&amount)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get approval points: %w", err)
	}
	if amount == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET points = points + ? WHERE handle = ?`, amount, ps.assignedTo); err != nil {
		return fmt.Errorf("credit points: %w", err)
	}
	const query = `
		INSERT INTO point_transactions (user_id, amount, transaction_type, description, blog_post_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		ps.assignedTo,
		amount,
		model.PointTransactionApproval,
		"approved: "+ps.storeName,
		postID,
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert point_transaction: %w", err)
	}
	return nil
}

// SetApprovalPoints sets how many points handle earns per approved post.
func (s *SQLiteStore) SetApprovalPoints(ctx context.Context, handle string, points int64) error {
	if points < 0 {
		return ErrInvalidPoints
	}
	result, err := s.db.ExecContext(ctx, `UPDATE users SET blog_approval_points = ? WHERE handle = ?`, points, handle)
	if err != nil {
		return fmt.Errorf("update approval points: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("update approval points: %w", err)
	} else if n == 0 {
		return fmt.Errorf("user %s: %w", handle, ErrNotFound)
	}
	return nil
}

// GetPoints returns handle's balance and up to limit ledger entries, newest first.
func (s *SQLiteStore) GetPoints(ctx context.Context, handle string, limit int) (*model.Points, error) {
	pts := &model.Points{Handle: handle, Transactions: []*model.PointTransaction{}}
	err := s.db.QueryRowContext(ctx, `SELECT points, blog_approval_points FROM users WHERE handle = ?`, handle).
		Scan(&pts.Points, &pts.ApprovalPoints)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", handle, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}

	const query = `
		SELECT pt.id, pt.user_id, pt.amount, pt.transaction_type, pt.description, pt.blog_post_id, bp.store_name, pt.created_at
		FROM point_transactions pt
		LEFT JOIN blog_posts bp ON bp.id = pt.blog_post_id
		WHERE pt.user_id = ?
		ORDER BY pt.created_at DESC, pt.id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("query point_transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t         model.PointTransaction
			postID    sql.NullInt64
			storeName sql.NullString
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &postID, &storeName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan point_transaction: %w", err)
		}
		t.BlogPostID = postID.Int64
		t.StoreName = storeName.String
		t.CreatedAt = parseTime(createdAt)
		pts.Transactions = append(pts.Transactions, &t)
	}
	return pts, rows.Err()
}
