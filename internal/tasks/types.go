// Package tasks はユーザーごとのタスク管理を提供します。
package tasks

import "time"

// Task は1件のタスクです。Owner のユーザーだけが参照・変更できます。
type Task struct {
	ID          int64     `json:"id"`
	Owner       string    `json:"owner"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update はタスク更新時に指定されたフィールドです。nil のフィールドは変更しません。
type Update struct {
	Description *string
	Completed   *bool
}
