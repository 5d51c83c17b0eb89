package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Locker serializes work per account. Every recomputation and every delta
// application holds the account's lock across its read-then-write.
type Locker interface {
	Lock(ctx context.Context, accountID string) (func(), error)
}

// KeyedMutex is an in-process Locker with one slot per account.
// Entries are reference counted and dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

func (k *KeyedMutex) acquire(accountID string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.slots[accountID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[accountID] = s
	}
	s.refs++
	return s
}

func (k *KeyedMutex) release(accountID string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(k.slots, accountID)
	}
}

// Lock blocks until the account is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, accountID string) (func(), error) {
	s := k.acquire(accountID)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(accountID, s)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, accountID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(accountID, s)
		})
	}, nil
}

// Len returns the number of accounts currently tracked.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

var _ Locker = (*KeyedMutex)(nil)
