package domain

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	n := 0
	var mu sync.Mutex
	return NewLedger(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("tr-%d", n)
	}, time.Now)
}

func TestReserveAndRelease(t *testing.T) {
	l := newTestLedger()
	l.Seed("acme", "p-1", 5)

	tr, err := l.Reserve("acme", "p-1", 3, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "tr-1", tr.ID)
	qty, _ := l.Available("acme", "p-1")
	assert.Equal(t, 2, qty)

	_, err = l.Reserve("acme", "p-1", 3, "ORD-2")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	released, err := l.Release("acme", tr.ID)
	require.NoError(t, err)
	assert.True(t, released.Released())
	_, err = l.Release("acme", tr.ID)
	require.NoError(t, err)

	qty, _ = l.Available("acme", "p-1")
	assert.Equal(t, 5, qty)
}

func TestReleaseReference(t *testing.T) {
	l := newTestLedger()
	l.Seed("acme", "p-1", 10)
	l.Seed("acme", "p-2", 10)

	_, err := l.Reserve("acme", "p-1", 2, "ORD-1")
	require.NoError(t, err)
	_, err = l.Reserve("acme", "p-2", 3, "ORD-1")
	require.NoError(t, err)
	other, err := l.Reserve("acme", "p-1", 4, "ORD-2")
	require.NoError(t, err)

	released := l.ReleaseReference("acme", "p-1", "ORD-1")
	require.Len(t, released, 1)
	assert.Equal(t, "tr-1", released[0].ID)
	assert.True(t, released[0].Released())

	qty, _ := l.Available("acme", "p-1")
	assert.Equal(t, 6, qty, "ORD-2 keeps its units")
	qty, _ = l.Available("acme", "p-2")
	assert.Equal(t, 7, qty, "other products keep theirs")

	assert.Empty(t, l.ReleaseReference("acme", "p-1", "ORD-1"))
	assert.Empty(t, l.ReleaseReference("globex", "p-1", "ORD-2"))

	still, err := l.Release("acme", other.ID)
	require.NoError(t, err)
	assert.True(t, still.Released())
}

func TestLedgerTenantsAreSeparate(t *testing.T) {
	l := newTestLedger()
	l.Seed("acme", "p-1", 5)

	_, err := l.Reserve("globex", "p-1", 1, "")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	tr, err := l.Reserve("acme", "p-1", 1, "")
	require.NoError(t, err)
	_, err = l.Release("globex", tr.ID)
	assert.ErrorIs(t, err, ErrTransferNotFound)
}

func TestReserveNeverOversells(t *testing.T) {
	l := newTestLedger()
	l.Seed("acme", "p-1", 10)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Reserve("acme", "p-1", 1, ""); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	qty, _ := l.Available("acme", "p-1")
	assert.Zero(t, qty)
}
