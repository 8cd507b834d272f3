package account

import "context"

// Store is the persistence boundary for accounts. The auth and telegram
// services depend on this interface, not on a concrete engine.
type Store interface {
	// Create inserts a new account. Returns xerrors.ErrDuplicateAccount
	// when the email or telegram username is already taken.
	Create(ctx context.Context, acc *Account) error

	// FindByIdentifier matches email or telegram username,
	// case-insensitively.
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)

	FindByID(ctx context.Context, id string) (*Account, error)

	// Update persists mutable profile fields and progress.
	Update(ctx context.Context, acc *Account) error

	// SetEntitlements replaces the enrolled and paid course lists. This is
	// the path out-of-band purchases (the telegram bot) go through.
	SetEntitlements(ctx context.Context, id string, enrolled, paid []string) error
}
