// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package model

import "time"

// PointTransaction is one entry in a writer's points ledger.
type PointTransaction struct {
	ID          int64     `json:"id"                   db:"id"`
	UserID      string    `json:"userId"               db:"user_id"`
	Amount      int64     `json:"amount"               db:"amount"`
	Type        string    `json:"transactionType"      db:"transaction_type"`
	Description string    `json:"description"          db:"description"`
	BlogPostID  int64     `json:"blogPostId,omitempty" db:"blog_post_id"`
	StoreName   string    `json:"storeName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"            db:"created_at"`
}

// PointTransactionApproval is the ledger type for points awarded on approval.
const PointTransactionApproval = "blog_approval"

// Points is a writer's balance and most recent ledger entries.
type Points struct {
	Handle         string              `json:"handle"`
	Points         int64               `json:"points"`
	ApprovalPoints int64               `json:"blogApprovalPoints"`
	Transactions   []*PointTransaction `json:"transactions"`
}

// WorkCount is a writer's completion count for the current UTC day.
// Max and Remaining are zero when there is no limit.
type WorkCount struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
}
