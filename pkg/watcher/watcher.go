// Package watcher is the external collaborator from SPEC_FULL.md §7: it
// turns chain activity into store.InsertCommitment calls. It is a thin
// adapter — the engine's invariants live in pkg/store and pkg/builder,
// not here — structurally the teacher's pkg/blockHandler.BlockHandler
// generalized from "hand blocks to a DKG scheduler" to "hand decoded
// bridge events to the commitment store".
package watcher

import (
	"context"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store"
)

// IWatcher is the watcher contract: something that can be handed to a
// chain poller as a block handler and drained with ListenToChannel.
type IWatcher interface {
	chainPoller.IBlockHandler
	ListenToChannel(ctx context.Context)
}

// Decoder extracts zero or more bridge events from a finalized block.
// Supplied by the caller since the wire format of deposit/withdrawal
// events is outside this engine's scope (spec.md §1 Non-goals: on-chain
// contracts).
type Decoder func(block *ethereum.EthereumBlock) ([]BridgeEvent, error)

// BridgeEvent is a decoded deposit or withdrawal ready for insertion.
type BridgeEvent struct {
	Kind           commitment.AccumulatorKind
	OwnerKey       [32]byte
	Amount         uint64
	CommitmentHash [32]byte
}

// BlockWatcher buffers finalized blocks on a channel and, on drain,
// decodes and inserts the bridge events they contain. Mirrors
// BlockHandler's channel-capacity and drop-with-warning policy exactly.
type BlockWatcher struct {
	BlockChannel chan *ethereum.EthereumBlock

	decode Decoder
	store  store.ICommitmentStore
	logger *zap.Logger
}

// NewBlockWatcher constructs a BlockWatcher with a 100-block buffer,
// matching the teacher's BlockHandler sizing rationale (more than enough
// headroom for finalized-only delivery).
func NewBlockWatcher(decode Decoder, st store.ICommitmentStore, logger *zap.Logger) *BlockWatcher {
	return &BlockWatcher{
		BlockChannel: make(chan *ethereum.EthereumBlock, 100),
		decode:       decode,
		store:        st,
		logger:       logger,
	}
}

// ListenToChannel drains BlockChannel, decoding and inserting every
// bridge event found in each block, until ctx is done.
func (w *BlockWatcher) ListenToChannel(ctx context.Context) {
	for {
		select {
		case block := <-w.BlockChannel:
			w.logger.Sugar().Infow("watcher received block", "block_number", block.Number)
			w.handleDecodedEvents(block)
		case <-ctx.Done():
			w.logger.Sugar().Info("watcher channel listener exiting due to context done")
			return
		}
	}
}

func (w *BlockWatcher) handleDecodedEvents(block *ethereum.EthereumBlock) {
	events, err := w.decode(block)
	if err != nil {
		w.logger.Sugar().Warnw("failed to decode block", "block_number", block.Number, "error", err)
		return
	}

	for _, ev := range events {
		id, nonce, err := w.store.InsertCommitment(ev.Kind, ev.OwnerKey, ev.Amount, ev.CommitmentHash)
		if err != nil {
			w.logger.Sugar().Errorw("failed to insert commitment from block", "block_number", block.Number, "error", err)
			continue
		}
		w.logger.Sugar().Infow("commitment inserted", "commitment_id", id, "nonce", nonce, "kind", ev.Kind, "block_number", block.Number)
	}
}

// HandleBlock implements chainPoller.IBlockHandler: enqueue the block,
// dropping it with a warning if the consumer has fallen behind.
func (w *BlockWatcher) HandleBlock(ctx context.Context, block *ethereum.EthereumBlock) error {
	select {
	case w.BlockChannel <- block:
		w.logger.Sugar().Debugw("block sent to channel", "block_number", block.Number)
	case <-ctx.Done():
		w.logger.Sugar().Warnw("context done before sending block to channel", "block_number", block.Number)
	default:
		w.logger.Sugar().Warnw("block channel is full, dropping block", "block_number", block.Number)
	}
	return nil
}

// HandleLog implements chainPoller.IBlockHandler. Event decoding happens
// on finalized blocks via Decoder, not on individual logs.
func (w *BlockWatcher) HandleLog(ctx context.Context, logWithBlock *chainPoller.LogWithBlock) error {
	return nil
}

// HandleReorgBlock implements chainPoller.IBlockHandler. This engine only
// ever watches finalized blocks, so reorgs never occur.
func (w *BlockWatcher) HandleReorgBlock(ctx context.Context, blockNumber uint64) {}
