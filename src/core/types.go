package main

import (
	"time"
)

// ResourceType enumerates the resource kinds a node can hold quota for
type ResourceType string

const (
	ResourceCPU       ResourceType = "CPU"
	ResourceMemory    ResourceType = "Memory"
	ResourceStorage   ResourceType = "Storage"
	ResourceBandwidth ResourceType = "Bandwidth"
)

// ResourceTypes lists every known resource kind in a fixed order
var ResourceTypes = []ResourceType{ResourceCPU, ResourceMemory, ResourceStorage, ResourceBandwidth}

// ParseResourceType maps a string onto a known resource kind
func ParseResourceType(s string) (ResourceType, error) {
	for _, rt := range ResourceTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", &ValidationError{Field: "resource", Reason: "unknown resource type: " + s}
}

// TransactionType identifies what a transaction does to the ledger
type TransactionType string

const (
	TxTypeAllocate TransactionType = "allocate"
	TxTypeRelease  TransactionType = "release"
	TxTypeAddNode  TransactionType = "add_node"
)

// Transaction is an immutable record embedded in exactly one block.
// Fields are declared in alphabetical JSON-name order so json.Marshal
// produces the canonical serialization used for block hashing.
type Transaction struct {
	Amount       float64                  `json:"amount"`
	NodeID       string                   `json:"node_id"`
	Quotas       map[ResourceType]float64 `json:"quotas,omitempty"`
	ResourceType ResourceType             `json:"resource_type,omitempty"`
	Timestamp    float64                  `json:"timestamp"`
	Type         TransactionType          `json:"transaction_type"`
}

// NewAllocationTransaction builds an allocate transaction, failing fast on malformed input
func NewAllocationTransaction(nodeID string, resource ResourceType, amount float64) (Transaction, error) {
	return newResourceTransaction(TxTypeAllocate, nodeID, resource, amount)
}

// NewReleaseTransaction builds a release transaction, failing fast on malformed input
func NewReleaseTransaction(nodeID string, resource ResourceType, amount float64) (Transaction, error) {
	return newResourceTransaction(TxTypeRelease, nodeID, resource, amount)
}

func newResourceTransaction(txType TransactionType, nodeID string, resource ResourceType, amount float64) (Transaction, error) {
	if nodeID == "" {
		return Transaction{}, &ValidationError{Field: "node_id", Reason: "node id cannot be empty"}
	}
	if _, err := ParseResourceType(string(resource)); err != nil {
		return Transaction{}, err
	}
	if amount <= 0 {
		return Transaction{}, &ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	return Transaction{
		Amount:       amount,
		NodeID:       nodeID,
		ResourceType: resource,
		Timestamp:    epochSeconds(),
		Type:         txType,
	}, nil
}

// NewRegistrationTransaction builds an add_node transaction carrying the
// node's quotas. Registration has its own shape: no resource kind, zero
// amount, and the full quota map.
func NewRegistrationTransaction(nodeID string, quotas map[ResourceType]float64) (Transaction, error) {
	if nodeID == "" {
		return Transaction{}, &ValidationError{Field: "node_id", Reason: "node id cannot be empty"}
	}
	copied := make(map[ResourceType]float64, len(quotas))
	for rt, q := range quotas {
		if _, err := ParseResourceType(string(rt)); err != nil {
			return Transaction{}, err
		}
		if q < 0 {
			return Transaction{}, &ValidationError{Field: "quotas", Reason: "quota for " + string(rt) + " cannot be negative"}
		}
		copied[rt] = q
	}
	return Transaction{
		NodeID:    nodeID,
		Quotas:    copied,
		Timestamp: epochSeconds(),
		Type:      TxTypeAddNode,
	}, nil
}

// Block is one link of the hash chain. Immutable once its hash is accepted;
// mutation after acceptance is the tamper condition Validate detects.
// Field order matches the canonical alphabetical key order.
type Block struct {
	Hash         string        `json:"hash"`
	Index        uint64        `json:"index"`
	Nonce        uint64        `json:"nonce"`
	PreviousHash string        `json:"previous_hash"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

// NodeState is a participant's ledger entry: per-resource quotas and
// current allocations. Invariant: allocated[r] <= quotas[r] for every r.
type NodeState struct {
	Allocated map[ResourceType]float64 `json:"allocated"`
	NodeID    string                   `json:"node_id"`
	Quotas    map[ResourceType]float64 `json:"quotas"`
	Status    string                   `json:"status"`
}

// AuditEvent records one operation outcome for the audit trail
type AuditEvent struct {
	Action    string                 `json:"action"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	NodeID    string                 `json:"node_id"`
	Outcome   string                 `json:"outcome"`
	Timestamp float64                `json:"timestamp"`
}

// VoteValue is a single voter's decision on a candidate block
type VoteValue string

const (
	VoteApprove VoteValue = "APPROVE"
	VoteReject  VoteValue = "REJECT"
	VoteAbstain VoteValue = "ABSTAIN"
)

// Voter is a tagged variant: a nil Decide uses the default rule that
// approves structurally well-formed blocks; a non-nil Decide is the
// voter's own decision function.
type Voter struct {
	ID     string
	Decide func(Block) VoteValue
}

// VoteRecord is one voter's entry in a consensus round
type VoteRecord struct {
	NodeID string    `json:"node"`
	Vote   VoteValue `json:"vote"`
}

// VoteDetails reports the full outcome of a consensus round so callers
// can audit exactly why it passed or failed
type VoteDetails struct {
	VotesFor      int          `json:"votes_for"`
	VotesAgainst  int          `json:"votes_against"`
	Abstentions   int          `json:"abstentions"`
	RequiredVotes int          `json:"required_votes"`
	TotalNodes    int          `json:"total_nodes"`
	Records       []VoteRecord `json:"voting_record"`
	Reason        string       `json:"reason,omitempty"`
	Reached       bool         `json:"consensus_reached"`
}

// BlockReceipt is returned to the caller after an approved mutation
type BlockReceipt struct {
	ReceiptID  string      `json:"receipt_id"`
	BlockIndex uint64      `json:"block_index"`
	BlockHash  string      `json:"block_hash"`
	Votes      VoteDetails `json:"votes"`
}

// RegistrationReceipt is returned after an approved node registration
type RegistrationReceipt struct {
	ReceiptID  string      `json:"receipt_id"`
	NodeID     string      `json:"node_id"`
	Token      string      `json:"token"`
	BlockIndex uint64      `json:"block_index"`
	BlockHash  string      `json:"block_hash"`
	Votes      VoteDetails `json:"votes"`
}

// epochSeconds returns the current time as fractional epoch seconds,
// the timestamp representation used in blocks and audit events
func epochSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
