package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// calculateBlockHash computes the canonical SHA-256 hash of a block's
// contents. The hash covers index, nonce, previous_hash, timestamp, and
// transactions; the stored hash field is excluded. Keys are emitted in a
// stable alphabetical order so independent implementations reproduce
// identical hashes.
func calculateBlockHash(block Block) string {
	blockData, _ := json.Marshal(struct {
		Index        uint64        `json:"index"`
		Nonce        uint64        `json:"nonce"`
		PreviousHash string        `json:"previous_hash"`
		Timestamp    float64       `json:"timestamp"`
		Transactions []Transaction `json:"transactions"`
	}{
		Index:        block.Index,
		Nonce:        block.Nonce,
		PreviousHash: block.PreviousHash,
		Timestamp:    block.Timestamp,
		Transactions: block.Transactions,
	})

	hash := sha256.Sum256(blockData)
	return hex.EncodeToString(hash[:])
}

// calculateSnapshotChecksum computes the tamper-detection checksum over
// the persisted collections. The same canonical ordering is used at save
// and load time so a byte-identical snapshot always verifies.
func calculateSnapshotChecksum(nodes []NodeState, chain []Block, auditEvents []AuditEvent) string {
	payload, _ := json.Marshal(struct {
		AuditEvents []AuditEvent `json:"audit_events"`
		Chain       []Block      `json:"chain"`
		Nodes       []NodeState  `json:"nodes"`
	}{
		AuditEvents: auditEvents,
		Chain:       chain,
		Nodes:       nodes,
	})

	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}
