package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"smartexpense/internal/core"
	"smartexpense/internal/store"

	"github.com/shopspring/decimal"
)

// Store keeps every record in process memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	users    map[string]core.User
	byEmail  map[string]string
	expenses map[string]core.Expense
	budgets  map[string]core.Budget
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    map[string]core.User{},
		byEmail:  map[string]string{},
		expenses: map[string]core.Expense{},
		budgets:  map[string]core.Budget{},
	}
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) InsertUser(_ context.Context, u core.User) (core.User, error) {
	u.Email = core.NormalizeEmail(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[u.Email]; taken {
		return core.User{}, fmt.Errorf("email %s: %w", u.Email, store.ErrDuplicate)
	}
	if _, taken := s.users[u.ID]; taken {
		return core.User{}, fmt.Errorf("user %s: %w", u.ID, store.ErrDuplicate)
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListExpensesByOwner(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) FindExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[e.UserID]; !ok {
		return core.Expense{}, fmt.Errorf("owner %s: %w", e.UserID, store.ErrNotFound)
	}
	if _, taken := s.expenses[e.ID]; taken {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, store.ErrDuplicate)
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok {
		return core.Expense{}, store.ErrNotFound
	}
	e.UserID = cur.UserID
	e.CreatedAt = cur.CreatedAt
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) FindBudget(_ context.Context, userID string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[userID]
	if !ok {
		return core.Budget{}, store.ErrNotFound
	}
	return copyBudget(b), nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[b.UserID]; !ok {
		return core.Budget{}, fmt.Errorf("owner %s: %w", b.UserID, store.ErrNotFound)
	}
	b = copyBudget(b)
	s.budgets[b.UserID] = b
	return copyBudget(b), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// copyBudget detaches the limits map so callers cannot mutate stored state.
func copyBudget(b core.Budget) core.Budget {
	limits := make(map[core.Category]decimal.Decimal, len(b.CategoryLimits))
	for k, v := range b.CategoryLimits {
		limits[k] = v
	}
	b.CategoryLimits = limits
	return b
}
