// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mdhender/blogbatch/model"
)

// Activity log actions.
const (
	ActionCreate            = "create"
	ActionReserve           = "reserve"
	ActionCancelReservation = "cancel_reservation"
	ActionComplete          = "complete"
	ActionApprove           = "approve"
	ActionReject            = "reject"
	ActionResubmit          = "resubmit"
)

const postColumns = `
	id, run_id, store_name, store_url, main_keyword, sub_keyword1, sub_keyword2, sub_keyword3,
	ai_content, blog_url, status, assigned_to, created_by, completion_notes, rejection_reason,
	admin_feedback, created_at, updated_at, reserved_at, completed_at, approved_at, rejected_at`

// CreateBlogPost inserts a post and its "create" activity log and returns the post id.
func (s *SQLiteStore) CreateBlogPost(ctx context.Context, post *model.BlogPost) (int64, error) {
	if post.Status == "" {
		post.Status = model.PostCreated
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO blog_posts (run_id, store_name, store_url, main_keyword, sub_keyword1, sub_keyword2,
			sub_keyword3, ai_content, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		nullString(post.RunID),
		post.StoreName,
		nullString(post.StoreURL),
		post.MainKeyword,
		nullString(post.SubKeyword1),
		nullString(post.SubKeyword2),
		nullString(post.SubKeyword3),
		post.AIContent,
		string(post.Status),
		nullString(post.CreatedBy),
		formatTime(post.CreatedAt),
		formatTime(post.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert blog_post: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get blog_post id: %w", err)
	}

	if err := insertActivity(ctx, tx, &model.ActivityLog{
		BlogPostID:  id,
		UserID:      post.CreatedBy,
		Action:      ActionCreate,
		StatusAfter: post.Status,
		CreatedAt:   post.CreatedAt,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	post.ID = id
	return id, nil
}

// GetBlogPost returns the post with the given id or ErrNotFound.
func (s *SQLiteStore) GetBlogPost(ctx context.Context, id int64) (*model.BlogPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("blog post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get blog_post: %w", err)
	}
	return post, nil
}

// ListBlogPosts returns posts newest first. An empty status lists all posts.
func (s *SQLiteStore) ListBlogPosts(ctx context.Context, status model.PostStatus) ([]*model.BlogPost, error) {
	query := `SELECT ` + postColumns + ` FROM blog_posts`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blog_posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.BlogPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blog_post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ListActivity returns the activity log of a post, oldest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, postID int64) ([]*model.ActivityLog, error) {
	const query = `
		SELECT id, blog_post_id, user_id, action, status_before, status_after, notes, created_at
		FROM activity_logs
		WHERE blog_post_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("query activity_logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.ActivityLog
	for rows.Next() {
		var (
			l                           model.ActivityLog
			userID, statusBefore, notes sql.NullString
			statusAfter, createdAt      string
		)
		if err := rows.Scan(&l.ID, &l.BlogPostID, &userID, &l.Action, &statusBefore, &statusAfter, &notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity_log: %w", err)
		}
		l.UserID = userID.String
		l.StatusBefore = model.PostStatus(statusBefore.String)
		l.StatusAfter = model.PostStatus(statusAfter)
		l.Notes = notes.String
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// ReservePost assigns a created post to a writer.
func (s *SQLiteStore) ReservePost(ctx context.Context, id int64, writer string) (*model.BlogPost, error) {
	now := time.Now().UTC()
	return s.transition(ctx, id, step{
		action: ActionReserve, actor: writer,
		from: []model.PostStatus{model.PostCreated}, next: model.PostReserved,
		set: `assigned_to = ?, reserved_at = ?`, args: []any{writer, formatTime(now)},
	})
}

// CancelReservation returns a reserved post to the pool. Only the assignee may cancel.
func (s *SQLiteStore) CancelReservation(ctx context.Context, id int64, actor string) (*model.BlogPost, error) {
	return s.transition(ctx, id, step{
		action: ActionCancelReservation, actor: actor, assigneeOnly: true,
		from: []model.PostStatus{model.PostReserved}, next: model.PostCreated,
		set: `assigned_to = NULL, reserved_at = NULL`,
	})
}

// CompletePost records the published blog url of a reserved post.
// Only the assignee may complete, and only within the daily limit.
func (s *SQLiteStore) CompletePost(ctx context.Context, id int64, actor, blogURL, notes string) (*model.BlogPost, error) {
	blogURL = strings.TrimSpace(blogURL)
	if blogURL == "" {
		return nil, ErrBlogURLRequired
	}
	now := time.Now().UTC()
	return s.transition(ctx, id, step{
		action: ActionComplete, actor: actor, notes: notes, assigneeOnly: true,
		from: []model.PostStatus{model.PostReserved}, next: model.PostCompleted,
		set:  `blog_url = ?, completion_notes = ?, completed_at = ?`,
		args: []any{blogURL, nullString(notes), formatTime(now)},
		check: func(ctx context.Context, tx *sql.Tx, _ postState) error {
			return s.checkDailyLimit(ctx, tx, actor, now)
		},
	})
}

// ApprovePost accepts a completed post and credits the assignee with
// their blog approval points.
func (s *SQLiteStore) ApprovePost(ctx context.Context, id int64, admin, feedback string) (*model.BlogPost, error) {
	now := time.Now().UTC()
	return s.transition(ctx, id, step{
		action: ActionApprove, actor: admin, notes: feedback,
		from: []model.PostStatus{model.PostCompleted}, next: model.PostApproved,
		set:  `admin_feedback = ?, approved_at = ?`,
		args: []any{nullString(feedback), formatTime(now)},
		after: func(ctx context.Context, tx *sql.Tx, ps postState) error {
			return awardApprovalPoints(ctx, tx, id, ps, now)
		},
	})
}

// RejectPost sends a completed post back to its writer.
func (s *SQLiteStore) RejectPost(ctx context.Context, id int64, admin, reason string) (*model.BlogPost, error) {
	now := time.Now().UTC()
	return s.transition(ctx, id, step{
		action: ActionReject, actor: admin, notes: reason,
		from: []model.PostStatus{model.PostCompleted}, next: model.PostRejected,
		set:  `rejection_reason = ?, rejected_at = ?`,
		args: []any{nullString(reason), formatTime(now)},
	})
}

// ResubmitPost marks a rejected post completed again. Only the assignee
// may resubmit, and the blog url is required.
func (s *SQLiteStore) ResubmitPost(ctx context.Context, id int64, actor, blogURL, notes string) (*model.BlogPost, error) {
	blogURL = strings.TrimSpace(blogURL)
	if blogURL == "" {
		return nil, ErrBlogURLRequired
	}
	now := time.Now().UTC()
	return s.transition(ctx, id, step{
		action: ActionResubmit, actor: actor, notes: notes, assigneeOnly: true,
		from: []model.PostStatus{model.PostRejected}, next: model.PostCompleted,
		set:  `blog_url = ?, completion_notes = ?, completed_at = ?`,
		args: []any{blogURL, nullString(notes), formatTime(now)},
	})
}

// postState is the part of a post a transition checks before updating it.
type postState struct {
	status     model.PostStatus
	assignedTo string
	storeName  string
}

// step describes one lifecycle transition.
type step struct {
	action       string
	actor        string
	notes        string
	from         []model.PostStatus
	next         model.PostStatus
	assigneeOnly bool   // actor must be the post's assignee
	set          string // extra assignments for the UPDATE
	args         []any  // arguments for set
	check        func(ctx context.Context, tx *sql.Tx, ps postState) error
	after        func(ctx context.Context, tx *sql.Tx, ps postState) error
}

// transition moves a post from one of the allowed statuses to the next,
// applies the step's assignments and logs the action, all in one transaction.
func (s *SQLiteStore) transition(ctx context.Context, id int64, st step) (*model.BlogPost, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		ps         postState
		current    string
		assignedTo sql.NullString
	)
	err = tx.QueryRowContext(ctx, `SELECT status, assigned_to, store_name FROM blog_posts WHERE id = ?`, id).Scan(&current, &assignedTo, &ps.storeName)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("blog post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	ps.status, ps.assignedTo = model.PostStatus(current), assignedTo.String
	if !slices.Contains(st.from, ps.status) {
		return nil, fmt.Errorf("%s post %d from %s: %w", st.action, id, ps.status, ErrInvalidTransition)
	}
	if st.assigneeOnly && ps.assignedTo != st.actor {
		return nil, fmt.Errorf("%s post %d by %s: %w", st.action, id, st.actor, ErrNotAssignee)
	}
	if st.check != nil {
		if err := st.check(ctx, tx, ps); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	query := `UPDATE blog_posts SET status = ?, updated_at = ?, ` + st.set + ` WHERE id = ? AND status = ?`
	params := append([]any{string(st.next), formatTime(now)}, st.args...)
	params = append(params, id, current)
	if _, err := tx.ExecContext(ctx, query, params...); err != nil {
		return nil, fmt.Errorf("update blog_post: %w", err)
	}

	if err := insertActivity(ctx, tx, &model.ActivityLog{
		BlogPostID:   id,
		UserID:       st.actor,
		Action:       st.action,
		StatusBefore: ps.status,
		StatusAfter:  st.next,
		Notes:        st.notes,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}
	if st.after != nil {
		if err := st.after(ctx, tx, ps); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetBlogPost(ctx, id)
}

func insertActivity(ctx context.Context, tx *sql.Tx, l *model.ActivityLog) error {
	const query = `
		INSERT INTO activity_logs (blog_post_id, user_id, action, status_before, status_after, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		l.BlogPostID,
		nullString(l.UserID),
		l.Action,
		nullString(string(l.StatusBefore)),
		string(l.StatusAfter),
		nullString(l.Notes),
		formatTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert activity_log: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*model.BlogPost, error) {
	var (
		p                                                      model.BlogPost
		runID, storeURL, sub1, sub2, sub3, blogURL, assignedTo sql.NullString
		createdBy, completionNotes, rejectionReason, feedback  sql.NullString
		reservedAt, completedAt, approvedAt, rejectedAt        sql.NullString
		status, createdAt, updatedAt                           string
	)
	if err := row.Scan(
		&p.ID, &runID, &p.StoreName, &storeURL, &p.MainKeyword, &sub1, &sub2, &sub3,
		&p.AIContent, &blogURL, &status, &assignedTo, &createdBy, &completionNotes, &rejectionReason,
		&feedback, &createdAt, &updatedAt, &reservedAt, &completedAt, &approvedAt, &rejectedAt,
	); err != nil {
		return nil, err
	}
	p.RunID = runID.String
	p.StoreURL = storeURL.String
	p.SubKeyword1, p.SubKeyword2, p.SubKeyword3 = sub1.String, sub2.String, sub3.String
	p.BlogURL = blogURL.String
	p.Status = model.PostStatus(status)
	p.AssignedTo = assignedTo.String
	p.CreatedBy = createdBy.String
	p.CompletionNotes = completionNotes.String
	p.RejectionReason = rejectionReason.String
	p.AdminFeedback = feedback.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.ReservedAt = parseTimePtr(reservedAt)
	p.CompletedAt = parseTimePtr(completedAt)
	p.ApprovedAt = parseTimePtr(approvedAt)
	p.RejectedAt = parseTimePtr(rejectedAt)
	return &p, nil
}
