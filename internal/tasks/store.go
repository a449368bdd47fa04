package tasks

import (
	"strings"
	"sync"
	"time"

	"github.com/yourusername/task-forge/internal/apperr"
)

// Store はタスクをメモリ上に保持します。ID は 1 から単調増加し、削除後も再利用しません。
type Store struct {
	now func() time.Time

	mu     sync.Mutex
	nextID int64
	byID   map[int64]*Task
	// 所有者ごとの作成順の ID
	byOwner map[string][]int64
}

// NewStore は空の Store を作成します。
func NewStore() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC() },
		byID:    make(map[int64]*Task),
		byOwner: make(map[string][]int64),
	}
}

// Create は owner のタスクを作成します。
func (s *Store) Create(owner, description string) (Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Task{}, errDescriptionRequired()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	task := &Task{
		ID:          s.nextID,
		Owner:       owner,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byID[task.ID] = task
	s.byOwner[owner] = append(s.byOwner[owner], task.ID)
	return *task, nil
}

// ListByOwner は owner のタスクを作成順に返します。該当が無い場合は空の slice です。
func (s *Store) ListByOwner(owner string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byOwner[owner]
	list := make([]Task, 0, len(ids))
	for _, id := range ids {
		list = append(list, *s.byID[id])
	}
	return list
}

// Get は owner が所有するタスクを返します。
func (s *Store) Get(owner string, id int64) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.lookup(owner, id)
	if err != nil {
		return Task{}, err
	}
	return *task, nil
}

// Update は指定されたフィールドだけを書き換えます。フィールドが無い場合は現在の値を返します。
func (s *Store) Update(owner string, id int64, update Update) (Task, error) {
	var description string
	if update.Description != nil {
		description = strings.TrimSpace(*update.Description)
		if description == "" {
			return Task{}, errDescriptionRequired()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.lookup(owner, id)
	if err != nil {
		return Task{}, err
	}
	if update.Description == nil && update.Completed == nil {
		return *task, nil
	}
	if update.Description != nil {
		task.Description = description
	}
	if update.Completed != nil {
		task.Completed = *update.Completed
	}
	task.UpdatedAt = s.now()
	return *task, nil
}

// Delete は owner が所有するタスクを削除します。
func (s *Store) Delete(owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(owner, id); err != nil {
		return err
	}
	delete(s.byID, id)

	ids := s.byOwner[owner]
	for i, v := range ids {
		if v == id {
			s.byOwner[owner] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byOwner[owner]) == 0 {
		delete(s.byOwner, owner)
	}
	return nil
}

// lookup は s.mu を保持した状態で呼び出します。
// 他ユーザーのタスクは存在しない場合と同じエラーを返します。
func (s *Store) lookup(owner string, id int64) (*Task, error) {
	task, ok := s.byID[id]
	if !ok || task.Owner != owner {
		return nil, errTaskNotFound()
	}
	return task, nil
}

func errTaskNotFound() *apperr.Error {
	return apperr.NotFound("TASK_NOT_FOUND", "指定されたタスクは存在しません。")
}

func errDescriptionRequired() *apperr.Error {
	return apperr.Validation("description を指定してください。")
}
