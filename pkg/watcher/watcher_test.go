package watcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store/memory"
)

func decodeOneDeposit(block *ethereum.EthereumBlock) ([]BridgeEvent, error) {
	var owner, hash [32]byte
	owner[0] = byte(block.Number.Value())
	hash[0] = byte(block.Number.Value() + 1)
	return []BridgeEvent{{
		Kind:           commitment.AccumulatorMMR,
		OwnerKey:       owner,
		Amount:         100,
		CommitmentHash: hash,
	}}, nil
}

func TestListenToChannelInsertsDecodedEvents(t *testing.T) {
	st := memory.New()
	defer st.Close()

	w := NewBlockWatcher(decodeOneDeposit, st, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.ListenToChannel(ctx)

	require.NoError(t, w.HandleBlock(ctx, &ethereum.EthereumBlock{Number: ethereum.EthereumQuantity(1)}))

	require.Eventually(t, func() bool {
		pending, err := st.FetchPending(commitment.AccumulatorMMR, 10)
		return err == nil && len(pending) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandleBlockDropsWhenChannelFull(t *testing.T) {
	st := memory.New()
	defer st.Close()

	w := NewBlockWatcher(decodeOneDeposit, st, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < cap(w.BlockChannel); i++ {
		require.NoError(t, w.HandleBlock(ctx, &ethereum.EthereumBlock{Number: ethereum.EthereumQuantity(i)}))
	}

	// channel is now full; one more HandleBlock must not block.
	done := make(chan struct{})
	go func() {
		_ = w.HandleBlock(ctx, &ethereum.EthereumBlock{Number: ethereum.EthereumQuantity(999)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleBlock blocked instead of dropping when channel is full")
	}
}

func TestHandleDecodedEventsSkipsOnDecodeError(t *testing.T) {
	st := memory.New()
	defer st.Close()

	failingDecode := func(block *ethereum.EthereumBlock) ([]BridgeEvent, error) {
		return nil, fmt.Errorf("bad block")
	}
	w := NewBlockWatcher(failingDecode, st, zap.NewNop())

	w.handleDecodedEvents(&ethereum.EthereumBlock{Number: ethereum.EthereumQuantity(1)})

	pending, err := st.FetchPending(commitment.AccumulatorMMR, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}
