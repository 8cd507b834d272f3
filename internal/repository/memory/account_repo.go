package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"saot-service/internal/domain/account"
	xerrors "saot-service/internal/pkg/errors"
)

// AccountRepository is an in-memory account.Store used by tests and
// local development.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*account.Account)}
}

func cloneAccount(acc *account.Account) *account.Account {
	cp := *acc
	cp.EnrolledCourses = append(cp.EnrolledCourses[:0:0], acc.EnrolledCourses...)
	cp.PaidCourses = append(cp.PaidCourses[:0:0], acc.PaidCourses...)
	if acc.Progress != nil {
		cp.Progress = make(map[string]int, len(acc.Progress))
		for k, v := range acc.Progress {
			cp.Progress[k] = v
		}
	}
	return &cp
}

func (r *AccountRepository) Create(_ context.Context, acc *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if acc.Email != "" && strings.EqualFold(existing.Email, acc.Email) {
			return xerrors.ErrDuplicateAccount
		}
		if acc.TelegramUsername != "" && strings.EqualFold(existing.TelegramUsername, acc.TelegramUsername) {
			return xerrors.ErrDuplicateAccount
		}
	}
	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	r.accounts[acc.ID] = cloneAccount(acc)
	return nil
}

func (r *AccountRepository) FindByIdentifier(_ context.Context, identifier string) (*account.Account, error) {
	identifier = strings.TrimSpace(identifier)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.accounts {
		if strings.EqualFold(acc.Email, identifier) ||
			(acc.TelegramUsername != "" && strings.EqualFold(acc.TelegramUsername, identifier)) {
			return cloneAccount(acc), nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cloneAccount(acc), nil
}

func (r *AccountRepository) Update(_ context.Context, acc *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.accounts[acc.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	existing.Name = acc.Name
	existing.AvatarURL = acc.AvatarURL
	existing.Phone = acc.Phone
	existing.Bio = acc.Bio
	existing.Location = acc.Location
	if acc.Progress != nil {
		existing.Progress = make(map[string]int, len(acc.Progress))
		for k, v := range acc.Progress {
			existing.Progress[k] = v
		}
	}
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepository) SetEntitlements(_ context.Context, id string, enrolled, paid []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	acc.EnrolledCourses = append(acc.EnrolledCourses[:0:0], enrolled...)
	acc.PaidCourses = append(acc.PaidCourses[:0:0], paid...)
	acc.UpdatedAt = time.Now().UTC()
	return nil
}
