package app

import (
	"context"
	"errors"
	"sync"
)

// Grade is a member's tier. VIP members get discounts.
type Grade string

const (
	GradeBasic Grade = "BASIC"
	GradeVIP   Grade = "VIP"
)

// Member is a registered customer.
type Member struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Grade Grade  `json:"grade"`
}

var ErrMemberNotFound = errors.New("member not found")

// MemberRepository stores members.
type MemberRepository interface {
	Save(ctx context.Context, m Member) error
	FindByID(ctx context.Context, id int64) (Member, error)
}

// MemoryMemberRepository is a MemberRepository backed by a map.
type MemoryMemberRepository struct {
	mu    sync.RWMutex
	store map[int64]Member
}

// NewMemoryMemberRepository returns an in-memory MemberRepository.
func NewMemoryMemberRepository() *MemoryMemberRepository {
	return &MemoryMemberRepository{store: make(map[int64]Member)}
}

func (r *MemoryMemberRepository) Save(_ context.Context, m Member) error {
	if m.Grade != GradeBasic && m.Grade != GradeVIP {
		return errors.New("grade must be BASIC or VIP")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[m.ID] = m
	return nil
}

func (r *MemoryMemberRepository) FindByID(_ context.Context, id int64) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.store[id]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}
