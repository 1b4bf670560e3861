package main

import (
	"context"
	"strings"
	"testing"
)

func TestNewHashChain_Genesis(t *testing.T) {
	hc := NewHashChain(1)

	if hc.Length() != 1 {
		t.Fatalf("Expected chain length 1 after creation, got %d", hc.Length())
	}

	genesis := hc.Head()
	if genesis.Index != 0 {
		t.Errorf("Expected genesis index 0, got %d", genesis.Index)
	}
	if genesis.PreviousHash != "0" {
		t.Errorf("Expected genesis previous_hash \"0\", got %s", genesis.PreviousHash)
	}
	if len(genesis.Transactions) != 0 {
		t.Errorf("Expected empty genesis transaction list, got %d", len(genesis.Transactions))
	}
	if !strings.HasPrefix(genesis.Hash, "0") {
		t.Errorf("Expected genesis hash to meet difficulty prefix, got %s", genesis.Hash)
	}
}

func TestMine_MeetsDifficultyPrefix(t *testing.T) {
	hc := NewHashChain(2)

	candidate := hc.NewCandidate(nil)
	hash, err := hc.Mine(context.Background(), &candidate)
	if err != nil {
		t.Fatalf("Unexpected mining error: %v", err)
	}

	if !strings.HasPrefix(hash, "00") {
		t.Errorf("Expected 2 leading zeros, got %s", hash)
	}
	if candidate.Hash != hash {
		t.Errorf("Expected mined hash stored on block, got %s vs %s", candidate.Hash, hash)
	}
	if calculateBlockHash(candidate) != hash {
		t.Error("Expected stored hash to match recomputed canonical hash")
	}
}

func TestMine_Cancellable(t *testing.T) {
	// High difficulty so the search cannot finish before cancellation is observed
	hc := NewHashChainFromBlocks([]Block{{Index: 0, PreviousHash: "0", Hash: "00", Transactions: []Transaction{}}}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidate := hc.NewCandidate(nil)
	_, err := hc.Mine(ctx, &candidate)
	if err == nil {
		t.Fatal("Expected error from cancelled mining, got nil")
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func buildTestChain(t *testing.T, difficulty, extraBlocks int) *HashChain {
	t.Helper()

	hc := NewHashChain(difficulty)
	for i := 0; i < extraBlocks; i++ {
		tx, err := NewAllocationTransaction("n1", ResourceCPU, 1.0)
		if err != nil {
			t.Fatalf("Unexpected transaction error: %v", err)
		}
		candidate := hc.NewCandidate([]Transaction{tx})
		if _, err := hc.Mine(context.Background(), &candidate); err != nil {
			t.Fatalf("Unexpected mining error: %v", err)
		}
		hc.Append(candidate)
	}
	return hc
}

func TestValidate_ValidChain(t *testing.T) {
	hc := buildTestChain(t, 1, 3)

	valid, reason := hc.Validate()
	if !valid {
		t.Errorf("Expected valid chain, got invalid: %s", reason)
	}
}

func TestValidate_DetectsTamperedTransaction(t *testing.T) {
	hc := buildTestChain(t, 1, 3)

	// Alter a historical transaction amount in place
	hc.blocks[1].Transactions[0].Amount = 999.0

	valid, reason := hc.Validate()
	if valid {
		t.Fatal("Expected validation to fail after tampering")
	}
	if !strings.Contains(reason, "block 1") {
		t.Errorf("Expected failure reported at block 1 (the first altered block), got: %s", reason)
	}
}

func TestValidate_DetectsTamperedNonce(t *testing.T) {
	hc := buildTestChain(t, 1, 2)

	hc.blocks[2].Nonce++

	valid, reason := hc.Validate()
	if valid {
		t.Fatal("Expected validation to fail after nonce change")
	}
	if !strings.Contains(reason, "block 2") {
		t.Errorf("Expected failure reported at block 2, got: %s", reason)
	}
}

func TestValidate_DetectsBrokenLinkage(t *testing.T) {
	hc := buildTestChain(t, 0, 2)

	// Re-mine block 1 with altered content so its own hash is consistent
	// but block 2's previous_hash no longer matches
	hc.blocks[1].Timestamp += 1.0
	hc.blocks[1].Hash = calculateBlockHash(hc.blocks[1])

	valid, reason := hc.Validate()
	if valid {
		t.Fatal("Expected validation to fail after linkage break")
	}
	if !strings.Contains(reason, "block 2 previous_hash") {
		t.Errorf("Expected linkage failure at block 2, got: %s", reason)
	}
}

func TestValidate_DetectsBadGenesisPreviousHash(t *testing.T) {
	hc := buildTestChain(t, 0, 0)

	hc.blocks[0].PreviousHash = "tampered"
	hc.blocks[0].Hash = calculateBlockHash(hc.blocks[0])

	valid, reason := hc.Validate()
	if valid {
		t.Fatal("Expected validation to fail for bad genesis previous_hash")
	}
	if !strings.Contains(reason, "genesis") {
		t.Errorf("Expected genesis failure reason, got: %s", reason)
	}
}

func TestValidate_EmptyChain(t *testing.T) {
	hc := NewHashChainFromBlocks(nil, 1)

	valid, reason := hc.Validate()
	if valid {
		t.Error("Expected empty chain to be invalid")
	}
	if reason != "chain is empty" {
		t.Errorf("Expected empty-chain reason, got: %s", reason)
	}
}

func TestBlocks_RoundTrip(t *testing.T) {
	hc := buildTestChain(t, 1, 2)

	blocks := hc.Blocks()
	if len(blocks) != 3 {
		t.Fatalf("Expected 3 serialized blocks, got %d", len(blocks))
	}

	restored := NewHashChainFromBlocks(blocks, 1)
	if restored.Length() != 3 {
		t.Fatalf("Expected restored length 3, got %d", restored.Length())
	}

	valid, reason := restored.Validate()
	if !valid {
		t.Errorf("Expected restored chain to validate, got: %s", reason)
	}
}

func TestBlocks_ReturnsCopy(t *testing.T) {
	hc := buildTestChain(t, 1, 1)

	blocks := hc.Blocks()
	blocks[0].Nonce = 12345

	valid, reason := hc.Validate()
	if !valid {
		t.Errorf("Expected chain to stay valid after mutating a serialized copy, got: %s", reason)
	}
}

func TestNewCandidate_LinksToHead(t *testing.T) {
	hc := buildTestChain(t, 1, 1)
	head := hc.Head()

	candidate := hc.NewCandidate(nil)
	if candidate.Index != head.Index+1 {
		t.Errorf("Expected candidate index %d, got %d", head.Index+1, candidate.Index)
	}
	if candidate.PreviousHash != head.Hash {
		t.Errorf("Expected candidate previous_hash %s, got %s", head.Hash, candidate.PreviousHash)
	}
	if candidate.Transactions == nil {
		t.Error("Expected non-nil transactions on candidate")
	}
}
