package correlatives

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type rowKey struct{ book, period string }

// memoryStore serialises callers with one mutex per row, held from
// FindCorrelativeForUpdate until release, mimicking SELECT ... FOR UPDATE.
type memoryStore struct {
	mu      sync.Mutex
	rows    map[rowKey]Correlative
	locks   map[rowKey]*sync.Mutex
	inserts int
	nextID  int64
	failErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[rowKey]Correlative{}, locks: map[rowKey]*sync.Mutex{}}
}

func (s *memoryStore) lockFor(k rowKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

type memoryTx struct {
	store *memoryStore
	held  []*sync.Mutex
}

func (tx *memoryTx) release() {
	for _, l := range tx.held {
		l.Unlock()
	}
	tx.held = nil
}

func (tx *memoryTx) FindCorrelativeForUpdate(ctx context.Context, book, period string) (Correlative, error) {
	k := rowKey{book, period}
	tx.store.mu.Lock()
	_, exists := tx.store.rows[k]
	tx.store.mu.Unlock()
	if !exists {
		return Correlative{}, shared.ErrCorrelativeNotFound
	}
	l := tx.store.lockFor(k)
	l.Lock()
	tx.held = append(tx.held, l)
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	return tx.store.rows[k], nil
}

func (tx *memoryTx) InsertCorrelative(ctx context.Context, book, period string) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	k := rowKey{book, period}
	if _, ok := tx.store.rows[k]; ok {
		return nil
	}
	tx.store.nextID++
	tx.store.inserts++
	tx.store.rows[k] = Correlative{ID: tx.store.nextID, Book: book, Period: period}
	return nil
}

func (tx *memoryTx) UpdateCorrelativeCounters(ctx context.Context, c Correlative) error {
	if tx.store.failErr != nil {
		return tx.store.failErr
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	tx.store.rows[rowKey{c.Book, c.Period}] = c
	return nil
}

func TestFormat(t *testing.T) {
	require.Equal(t, "M000000002", Format(RoleMovement, 2))
	require.Equal(t, "A000000001", Format(RoleOpening, 1))
	require.Equal(t, "C999999999", Format(RoleClosing, MaxNumber))
}

func TestFindOrCreateCreatesOnce(t *testing.T) {
	store := newMemoryStore()
	alloc := NewAllocator()

	tx := &memoryTx{store: store}
	c, err := alloc.FindOrCreate(context.Background(), tx, "140100", "202301")
	require.NoError(t, err)
	require.Zero(t, c.LastA+c.LastM+c.LastC)
	tx.release()

	tx = &memoryTx{store: store}
	again, err := alloc.FindOrCreate(context.Background(), tx, "140100", "202301")
	require.NoError(t, err)
	tx.release()
	require.Equal(t, c.ID, again.ID)
	require.Equal(t, 1, store.inserts)
}

func TestStepTouchesOnlyRoleCounter(t *testing.T) {
	store := newMemoryStore()
	alloc := NewAllocator()
	tx := &memoryTx{store: store}
	defer tx.release()

	c, err := alloc.FindOrCreate(context.Background(), tx, "140100", "202301")
	require.NoError(t, err)
	c.LastA, c.LastC = 4, 9

	next, n, err := alloc.Step(context.Background(), tx, c, RoleMovement)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.EqualValues(t, 4, next.LastA)
	require.EqualValues(t, 1, next.LastM)
	require.EqualValues(t, 9, next.LastC)
	require.Equal(t, next, store.rows[rowKey{"140100", "202301"}])
}

func TestStepRejectsClosedAndUnknownRole(t *testing.T) {
	alloc := NewAllocator()
	tx := &memoryTx{store: newMemoryStore()}
	closed := time.Now()

	_, _, err := alloc.Step(context.Background(), tx, Correlative{Closed: &closed}, RoleMovement)
	require.ErrorIs(t, err, shared.ErrCorrelativeClosed)
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, _, err = alloc.Step(context.Background(), tx, Correlative{}, Role("X"))
	require.ErrorIs(t, err, shared.ErrInvalidRole)

	_, _, err = alloc.Step(context.Background(), tx, Correlative{LastC: MaxNumber}, RoleClosing)
	require.ErrorIs(t, err, shared.ErrCorrelativeExhausted)
}

func TestStepPropagatesPersistenceError(t *testing.T) {
	store := newMemoryStore()
	store.failErr = shared.Persistence("update correlative", errors.New("disk full"))
	alloc := NewAllocator()
	tx := &memoryTx{store: store}
	defer tx.release()

	c, err := alloc.FindOrCreate(context.Background(), tx, "140100", "202301")
	require.NoError(t, err)
	_, _, err = alloc.Step(context.Background(), tx, c, RoleMovement)
	require.Equal(t, shared.KindPersistence, shared.KindOf(err))
	require.Zero(t, store.rows[rowKey{"140100", "202301"}].LastM)
}

func TestAllocateSequentialIsContiguous(t *testing.T) {
	store := newMemoryStore()
	alloc := NewAllocator()
	for i := 1; i <= 5; i++ {
		tx := &memoryTx{store: store}
		code, err := alloc.Allocate(context.Background(), tx, "140100", "202301", RoleMovement)
		tx.release()
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("M%09d", i), code)
	}
}

func TestAllocateConcurrentCallersGetUniqueNumbers(t *testing.T) {
	store := newMemoryStore()
	alloc := NewAllocator()
	const callers = 32

	var mu sync.Mutex
	seen := make(map[string]bool, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			tx := &memoryTx{store: store}
			defer tx.release()
			code, err := alloc.Allocate(context.Background(), tx, "140100", "202301", RoleMovement)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[code] {
				return fmt.Errorf("duplicate code %s", code)
			}
			seen[code] = true
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i := 1; i <= callers; i++ {
		require.True(t, seen[Format(RoleMovement, int64(i))], "missing %d", i)
	}
	require.Equal(t, 1, store.inserts)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("C")
	require.NoError(t, err)
	require.Equal(t, RoleClosing, r)
	_, err = ParseRole("m")
	require.ErrorIs(t, err, shared.ErrInvalidRole)
}
