package bot

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
	"github.com/iliyamo/parking-reservation-bot/internal/repository"
	"github.com/iliyamo/parking-reservation-bot/internal/utils"
)

// Resolver defaults.  Three quick attempts cover the race where a user
// links a plate and pays within the same logical turn and the payment
// handler's read lands before the link is visible; anything longer
// would risk the platform's webhook delivery timeout.
const (
	resolverAttempts = 3
	resolverDelay    = 150 * time.Millisecond
)

// LinkResolver resolves a chat user to a linked account with a short
// bounded retry.  It has no side effects; a miss after the retry
// budget is a deterministic ErrNotLinked, never a silent empty plate.
type LinkResolver struct {
	accounts AccountStore
	attempts int
	delay    time.Duration
}

// NewLinkResolver builds a resolver over the given account store.
func NewLinkResolver(accounts AccountStore) *LinkResolver {
	return &LinkResolver{accounts: accounts, attempts: resolverAttempts, delay: resolverDelay}
}

// NewLinkResolverWithBudget builds a resolver with an explicit retry
// budget.  Tests use this to shrink the delay.
func NewLinkResolverWithBudget(accounts AccountStore, attempts int, delay time.Duration) *LinkResolver {
	return &LinkResolver{accounts: accounts, attempts: attempts, delay: delay}
}

// Resolve returns the linked account for a chat id, retrying misses
// within the budget.  Store errors other than a missing link abort the
// retry loop immediately.
func (r *LinkResolver) Resolve(ctx context.Context, chatID int64) (*model.LinkedAccount, error) {
	var acc *model.LinkedAccount
	var fatal error
	err := utils.Retry(ctx, r.attempts, r.delay, func() error {
		a, err := r.accounts.GetByChatID(ctx, chatID)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return err // retryable: the link may just not be visible yet
		}
		if err != nil {
			fatal = err
			return nil
		}
		acc = a
		return nil
	})
	if fatal != nil {
		return nil, fatal
	}
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrNotLinked
		}
		return nil, err
	}
	return acc, nil
}
