package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// miningCancelCheckInterval controls how often the mining loop polls its
// context. Mining is the only potentially unbounded step in the pipeline,
// so it must stay cancellable.
const miningCancelCheckInterval = 4096

// HashChain is the append-only sequence of accepted blocks. It trusts its
// caller for consensus approval but re-derives every hash independently
// during validation.
type HashChain struct {
	mu         sync.RWMutex
	blocks     []Block
	difficulty int
}

// NewHashChain creates a chain with a freshly mined genesis block.
// Genesis has index 0, an empty transaction list, and previous hash "0".
func NewHashChain(difficulty int) *HashChain {
	if difficulty < 0 {
		difficulty = 0
	}
	hc := &HashChain{difficulty: difficulty}

	genesis := Block{
		Index:        0,
		Timestamp:    epochSeconds(),
		Transactions: []Transaction{},
		PreviousHash: "0",
	}
	// Genesis mining cannot be cancelled; at startup there is nothing to roll back
	genesis.Hash, _ = hc.Mine(context.Background(), &genesis)
	hc.blocks = []Block{genesis}
	return hc
}

// NewHashChainFromBlocks loads a previously serialized chain. No hash
// recomputation happens here; callers must run Validate afterwards.
func NewHashChainFromBlocks(blocks []Block, difficulty int) *HashChain {
	if difficulty < 0 {
		difficulty = 0
	}
	copied := make([]Block, len(blocks))
	copy(copied, blocks)
	return &HashChain{blocks: copied, difficulty: difficulty}
}

// Difficulty returns the number of leading hex zeros required of block hashes
func (hc *HashChain) Difficulty() int {
	return hc.difficulty
}

// Length returns the number of accepted blocks
func (hc *HashChain) Length() int {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return len(hc.blocks)
}

// Head returns the latest accepted block
func (hc *HashChain) Head() Block {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.blocks[len(hc.blocks)-1]
}

// NewCandidate builds the next unmined block referencing the current head.
// The candidate is not part of the chain until Append is called.
func (hc *HashChain) NewCandidate(transactions []Transaction) Block {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if transactions == nil {
		transactions = []Transaction{}
	}
	head := hc.blocks[len(hc.blocks)-1]
	return Block{
		Index:        head.Index + 1,
		Timestamp:    epochSeconds(),
		Transactions: transactions,
		PreviousHash: head.Hash,
	}
}

// Mine increments the block's nonce from its current value until the
// canonical hash has the required leading-zero prefix, then stores and
// returns that hash. Expected iterations grow exponentially with the
// difficulty; the loop checks its context periodically so a caller can
// abandon an expensive search.
func (hc *HashChain) Mine(ctx context.Context, block *Block) (string, error) {
	prefix := strings.Repeat("0", hc.difficulty)

	for i := 0; ; i++ {
		if i%miningCancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
		}

		hash := calculateBlockHash(*block)
		if strings.HasPrefix(hash, prefix) {
			block.Hash = hash
			return hash, nil
		}
		block.Nonce++
	}
}

// Append adds an already mined, consensus-approved block to the tail.
// There is no internal re-validation against consensus here.
func (hc *HashChain) Append(block Block) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.blocks = append(hc.blocks, block)
}

// Validate walks the chain from genesis, recomputing each block's hash
// from stored fields, checking the proof-of-work prefix, and checking the
// previous-hash linkage. The first mismatch wins and is reported with
// enough detail to diagnose which block was altered. Never panics.
func (hc *HashChain) Validate() (bool, string) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if len(hc.blocks) == 0 {
		return false, "chain is empty"
	}

	prefix := strings.Repeat("0", hc.difficulty)

	for i, block := range hc.blocks {
		computed := calculateBlockHash(block)
		if block.Hash != computed {
			return false, fmt.Sprintf("invalid hash at block %d: stored=%s recomputed=%s", i, block.Hash, computed)
		}

		if !strings.HasPrefix(block.Hash, prefix) {
			return false, fmt.Sprintf("block %d does not meet difficulty prefix: %s", i, block.Hash)
		}

		if i == 0 {
			if block.PreviousHash != "0" {
				return false, "genesis block previous_hash must be \"0\""
			}
			continue
		}

		prev := hc.blocks[i-1]
		if block.PreviousHash != prev.Hash {
			return false, fmt.Sprintf("block %d previous_hash (%s) does not match hash of block %d (%s)", i, block.PreviousHash, i-1, prev.Hash)
		}
	}

	return true, "chain is valid"
}

// Blocks returns a copy of the full block sequence for serialization
func (hc *HashChain) Blocks() []Block {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	out := make([]Block, len(hc.blocks))
	copy(out, hc.blocks)
	return out
}
