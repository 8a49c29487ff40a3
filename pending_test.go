package mqtt311

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCompleteOnce(t *testing.T) {
	tok := &PublishToken{token: newToken()}

	tok.complete(nil)
	tok.complete(errors.New("second resolution must be ignored"))

	select {
	case <-tok.Done():
	default:
		t.Fatal("token not completed")
	}
	assert.NoError(t, tok.Error())
}

func TestTokenWaitContextCancelled(t *testing.T) {
	tok := &PublishToken{token: newToken()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := tok.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenWaitReturnsError(t *testing.T) {
	tok := &PublishToken{token: newToken()}

	want := errors.New("publish failed")
	go tok.complete(want)

	err := tok.Wait(context.Background())
	assert.ErrorIs(t, err, want)
}

func TestPendingTableReserve(t *testing.T) {
	table := newPendingTable()
	tok := &ConnectToken{token: newToken()}

	require.NoError(t, table.reserve(connectPacketID, tok))
	assert.ErrorIs(t, table.reserve(connectPacketID, tok), ErrPacketIDInUse)

	got, ok := table.take(connectPacketID)
	require.True(t, ok)
	assert.Same(t, tok, got.(*ConnectToken))

	_, ok = table.take(connectPacketID)
	assert.False(t, ok)
}

func TestPendingTableAllocateNeverZero(t *testing.T) {
	table := newPendingTable()

	for range 100 {
		id, err := table.allocate(&PublishToken{token: newToken()})
		require.NoError(t, err)
		assert.NotZero(t, id)
	}
	assert.Equal(t, 100, table.len())
}

func TestPendingTableAllocateSkipsOutstanding(t *testing.T) {
	table := newPendingTable()

	id1, err := table.allocate(&PublishToken{token: newToken()})
	require.NoError(t, err)

	// Force the cycle back around to the still-outstanding id.
	table.mu.Lock()
	table.next = id1
	table.mu.Unlock()

	id2, err := table.allocate(&PublishToken{token: newToken()})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestPendingTableAllocateWrapsAroundZero(t *testing.T) {
	table := newPendingTable()

	table.mu.Lock()
	table.next = 65535
	table.mu.Unlock()

	id1, err := table.allocate(&PublishToken{token: newToken()})
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), id1)

	// The next id must skip 0.
	id2, err := table.allocate(&PublishToken{token: newToken()})
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id2)
}

func TestPendingTableAllocateConcurrentUnique(t *testing.T) {
	table := newPendingTable()

	const n = 200
	ids := make(chan uint16, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := table.allocate(&PublishToken{token: newToken()})
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint16]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
}

func TestPendingTableFailAll(t *testing.T) {
	table := newPendingTable()

	tokens := make([]*PublishToken, 5)
	for i := range tokens {
		tokens[i] = &PublishToken{token: newToken()}
		_, err := table.allocate(tokens[i])
		require.NoError(t, err)
	}

	table.failAll(ErrConnectionClosed)

	assert.Zero(t, table.len())
	for _, tok := range tokens {
		select {
		case <-tok.Done():
			assert.ErrorIs(t, tok.Error(), ErrConnectionClosed)
		default:
			t.Fatal("token not resolved by failAll")
		}
	}
}

func TestPendingTableOutstanding(t *testing.T) {
	table := newPendingTable()

	id, err := table.allocate(&PublishToken{token: newToken()})
	require.NoError(t, err)

	assert.True(t, table.outstanding(id))
	table.take(id)
	assert.False(t, table.outstanding(id))
}
