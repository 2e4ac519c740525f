// Package nonce hands out account nonces so concurrent submissions from one
// wallet never share or skip a nonce.
package nonce

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// PendingNoncer reports the next nonce the node expects, pending transactions included.
type PendingNoncer interface {
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
}

// Coordinator issues nonces and records them once their transaction is submitted.
type Coordinator interface {
	// AcquireNonce blocks until no other lease is held for addr.
	AcquireNonce(ctx context.Context, addr common.Address) (Lease, error)
	// CommitNonce records a nonce the caller chose itself.
	CommitNonce(ctx context.Context, addr common.Address, nonce uint64) error
	// Resync drops the committed watermark for addr and returns the node's pending nonce.
	Resync(ctx context.Context, addr common.Address) (uint64, error)
}

// Lease owns a nonce until Commit or Abandon. Only the first of the two has any effect.
type Lease interface {
	Nonce() uint64
	// Commit marks the nonce consumed and releases the address.
	Commit(ctx context.Context) error
	// Abandon releases the address without consuming the nonce, so the next lease reuses it.
	Abandon()
}

// Manager serializes leases per address and derives the next nonce from the
// node's pending count and the store's committed watermark.
type Manager struct {
	scope  string
	chain  PendingNoncer
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[common.Address]*semaphore.Weighted
}

var _ Coordinator = (*Manager)(nil)

// NewManager creates a manager whose store entries are namespaced by scope,
// typically the chain ID, so one store can serve several chains.
func NewManager(scope string, chain PendingNoncer, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		scope:  scope,
		chain:  chain,
		store:  store,
		logger: logger.Named("nonce"),
		locks:  make(map[common.Address]*semaphore.Weighted),
	}
}

func (m *Manager) key(addr common.Address) string {
	return m.scope + ":" + strings.ToLower(addr.Hex())
}

func (m *Manager) lock(addr common.Address) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.locks[addr]
	if !ok {
		sem = semaphore.NewWeighted(1)
		m.locks[addr] = sem
	}
	return sem
}

func (m *Manager) AcquireNonce(ctx context.Context, addr common.Address) (Lease, error) {
	sem := m.lock(addr)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for nonce lock: %w", err)
	}

	next, err := m.next(ctx, addr)
	if err != nil {
		sem.Release(1)
		return nil, err
	}

	m.logger.Debug("nonce leased", zap.String("address", addr.Hex()), zap.Uint64("nonce", next))
	return &lease{manager: m, sem: sem, addr: addr, nonce: next}, nil
}

func (m *Manager) next(ctx context.Context, addr common.Address) (uint64, error) {
	pending, err := m.chain.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	committed, ok, err := m.store.Committed(ctx, m.key(addr))
	if err != nil {
		return 0, err
	}
	// the node may not have seen our last broadcast yet. A committed transaction
	// that was later dropped keeps the watermark ahead until Resync is called.
	if ok && committed+1 > pending {
		return committed + 1, nil
	}
	return pending, nil
}

func (m *Manager) CommitNonce(ctx context.Context, addr common.Address, nonce uint64) error {
	if err := m.store.Commit(ctx, m.key(addr), nonce); err != nil {
		return err
	}
	m.logger.Debug("nonce committed", zap.String("address", addr.Hex()), zap.Uint64("nonce", nonce))
	return nil
}

func (m *Manager) Resync(ctx context.Context, addr common.Address) (uint64, error) {
	sem := m.lock(addr)
	if err := sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("wait for nonce lock: %w", err)
	}
	defer sem.Release(1)

	if err := m.store.Reset(ctx, m.key(addr)); err != nil {
		return 0, err
	}
	pending, err := m.chain.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	m.logger.Info("nonce watermark reset", zap.String("address", addr.Hex()), zap.Uint64("pending", pending))
	return pending, nil
}

type lease struct {
	manager *Manager
	sem     *semaphore.Weighted
	addr    common.Address
	nonce   uint64
	once    sync.Once
}

func (l *lease) Nonce() uint64 { return l.nonce }

func (l *lease) Commit(ctx context.Context) error {
	err := fmt.Errorf("nonce %d already released", l.nonce)
	l.once.Do(func() {
		defer l.sem.Release(1)
		err = l.manager.CommitNonce(ctx, l.addr, l.nonce)
	})
	return err
}

func (l *lease) Abandon() {
	l.once.Do(func() {
		l.sem.Release(1)
		l.manager.logger.Debug("nonce abandoned", zap.String("address", l.addr.Hex()), zap.Uint64("nonce", l.nonce))
	})
}
