// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package model

import "time"

// PostStatus is the review state of a persisted blog post.
//
//	created -> reserved -> completed -> approved
//	                           |  ^
//	                           v  |
//	                         rejected
type PostStatus string

const (
	PostCreated   PostStatus = "created"
	PostReserved  PostStatus = "reserved"
	PostCompleted PostStatus = "completed"
	PostApproved  PostStatus = "approved"
	PostRejected  PostStatus = "rejected"
)

// ParsePostStatus returns the status for s and whether it is known.
func ParsePostStatus(s string) (PostStatus, bool) {
	switch ps := PostStatus(s); ps {
	case PostCreated, PostReserved, PostCompleted, PostApproved, PostRejected:
		return ps, true
	}
	return "", false
}

// BlogPost is a generated post moving through the review lifecycle.
type BlogPost struct {
	ID              int64      `json:"id"                        db:"id"`
	RunID           string     `json:"runId,omitempty"           db:"run_id"`
	StoreName       string     `json:"storeName"                 db:"store_name"`
	StoreURL        string     `json:"storeURL,omitempty"        db:"store_url"`
	MainKeyword     string     `json:"mainKeyword"               db:"main_keyword"`
	SubKeyword1     string     `json:"subKeyword1,omitempty"     db:"sub_keyword1"`
	SubKeyword2     string     `json:"subKeyword2,omitempty"     db:"sub_keyword2"`
	SubKeyword3     string     `json:"subKeyword3,omitempty"     db:"sub_keyword3"`
	AIContent       string     `json:"aiContent"                 db:"ai_content"`
	BlogURL         string     `json:"blogURL,omitempty"         db:"blog_url"`
	Status          PostStatus `json:"status"                    db:"status"`
	AssignedTo      string     `json:"assignedTo,omitempty"      db:"assigned_to"`
	CreatedBy       string     `json:"createdBy"                 db:"created_by"`
	CompletionNotes string     `json:"completionNotes,omitempty" db:"completion_notes"`
	RejectionReason string     `json:"rejectionReason,omitempty" db:"rejection_reason"`
	AdminFeedback   string     `json:"adminFeedback,omitempty"   db:"admin_feedback"`
	CreatedAt       time.Time  `json:"createdAt"                 db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt"                 db:"updated_at"`
	ReservedAt      *time.Time `json:"reservedAt,omitempty"      db:"reserved_at"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"     db:"completed_at"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"      db:"approved_at"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"      db:"rejected_at"`
}

// NewBlogPost builds a freshly generated post for a row.
func NewBlogPost(runID string, row Row, content, createdBy string, now time.Time) *BlogPost {
	return &BlogPost{
		RunID:       runID,
		StoreName:   row.StoreName,
		StoreURL:    row.StoreURL,
		MainKeyword: row.MainKeyword,
		SubKeyword1: row.SubKeyword(0),
		SubKeyword2: row.SubKeyword(1),
		SubKeyword3: row.SubKeyword(2),
		AIContent:   content,
		Status:      PostCreated,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ActivityLog records one status change of a blog post.
type ActivityLog struct {
	ID           int64      `json:"id"                     db:"id"`
	BlogPostID   int64      `json:"blogPostId"             db:"blog_post_id"`
	UserID       string     `json:"userId"                 db:"user_id"`
	Action       string     `json:"action"                 db:"action"`
	StatusBefore PostStatus `json:"statusBefore,omitempty" db:"status_before"`
	StatusAfter  PostStatus `json:"statusAfter"            db:"status_after"`
	Notes        string     `json:"notes,omitempty"        db:"notes"`
	CreatedAt    time.Time  `json:"createdAt"              db:"created_at"`
}

// User is an operator of the tool. Admins generate and review posts;
// writers reserve and complete them.
type User struct {
	Handle       string    `json:"handle"    db:"handle"`
	UserName     string    `json:"userName"  db:"user_name"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	Role         string    `json:"role"      db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

const (
	RoleAdmin  = "admin"
	RoleWriter = "user"
)
