package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("rationd")

// Engine orchestrates the full mutation pipeline: validate -> mine ->
// vote -> apply -> persist. One mutex serializes every mutating operation
// so ledger mutation, chain append, and snapshot save appear atomic
// relative to each other; a half-applied allocation with no corresponding
// block would be a consistency violation.
type Engine struct {
	mu sync.Mutex

	ledger *ResourceLedger
	chain  *HashChain
	gate   *ConsensusGate
	store  *StateStore
	audit  *AuditTrail
	auth   *TokenIssuer

	voteThreshold float64

	// newVoter builds the roster entry for a registered node. The default
	// produces voters using the default structural-approval rule; callers
	// simulating dissenting participants can install their own factory.
	newVoter func(nodeID string) Voter

	// Set when the loaded snapshot failed its integrity check or the
	// restored chain failed validation. All mutation is refused until an
	// operator resolves the snapshot; reads are still served.
	tainted     bool
	taintReason string

	startedAt time.Time
}

// EngineStatus is a point-in-time summary for callers
type EngineStatus struct {
	Time        string   `json:"time"`
	Nodes       []string `json:"nodes"`
	Blocks      int      `json:"blocks"`
	Difficulty  int      `json:"difficulty"`
	IntegrityOk bool     `json:"integrity_ok"`
	TaintReason string   `json:"taint_reason,omitempty"`
}

// NewEngine loads persisted state, re-validates it, and wires the core
// components together. A checksum mismatch or an invalid restored chain
// taints the engine rather than aborting startup: the data stays readable
// but every mutation fails until the snapshot is resolved.
func NewEngine(cfg *Config) (*Engine, error) {
	store := NewStateStore(filepath.Join(cfg.DataDir, cfg.StateFile))

	snapshot, integrityOk, integrityReason, err := store.Load()
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		ledger:        NewResourceLedger(),
		store:         store,
		audit:         NewAuditTrail(),
		auth:          NewTokenIssuer(cfg.NodeAuthSecret),
		voteThreshold: cfg.VoteThreshold,
		newVoter:      func(nodeID string) Voter { return Voter{ID: nodeID} },
		startedAt:     time.Now(),
	}

	if len(snapshot.Chain) > 0 {
		engine.chain = NewHashChainFromBlocks(snapshot.Chain, cfg.Difficulty)
	} else {
		engine.chain = NewHashChain(cfg.Difficulty)
	}

	if err := engine.ledger.Restore(snapshot.Nodes); err != nil {
		return nil, err
	}
	engine.audit.Restore(snapshot.AuditEvents)

	// Tokens are deterministic under the secret, so restart re-derives them
	for _, nodeID := range engine.ledger.NodeIDs() {
		if _, err := engine.auth.IssueToken(nodeID); err != nil {
			return nil, err
		}
	}

	if err := engine.refreshRoster(); err != nil {
		return nil, err
	}

	if !integrityOk {
		logger.Warn("SECURITY: persisted snapshot failed integrity check; state loaded but mutations are disabled",
			"file", store.Path(),
			"reason", integrityReason)
		engine.tainted = true
		engine.taintReason = integrityReason
	}

	// Chain validation re-derives every block hash as a second,
	// independent integrity check on the loaded state
	if len(snapshot.Chain) > 0 {
		if ok, reason := engine.chain.Validate(); !ok {
			logger.Warn("SECURITY: restored chain failed validation; mutations are disabled", "reason", reason)
			engine.tainted = true
			engine.taintReason = reason
		}
	}

	logger.Info("Engine initialized",
		"nodes", len(snapshot.Nodes),
		"blocks", engine.chain.Length(),
		"difficulty", cfg.Difficulty,
		"integrityOk", !engine.tainted)
	return engine, nil
}

// refreshRoster rebuilds the consensus roster from the currently
// registered nodes. The gate stays nil until the first participant exists.
// Must run under the pipeline lock (or during single-threaded startup).
func (e *Engine) refreshRoster() error {
	ids := e.ledger.NodeIDs()
	if len(ids) == 0 {
		e.gate = nil
		return nil
	}

	voters := make([]Voter, 0, len(ids))
	for _, id := range ids {
		voters = append(voters, e.newVoter(id))
	}

	if e.gate == nil {
		gate, err := NewConsensusGate(voters, e.voteThreshold)
		if err != nil {
			return err
		}
		e.gate = gate
		return nil
	}
	return e.gate.UpdateRoster(voters)
}

// checkTainted returns the integrity error that halts all mutation on a
// tainted engine
func (e *Engine) checkTainted() error {
	if e.tainted {
		return &IntegrityError{Component: "snapshot", Reason: e.taintReason}
	}
	return nil
}

// RegisterParticipant runs the registration pipeline. The node is
// registered optimistically so its founding block can be proposed; if
// consensus rejects the block, the registration is rolled back before the
// error is returned, keeping ledger and chain causally consistent.
func (e *Engine) RegisterParticipant(ctx context.Context, nodeID string, quotas map[ResourceType]float64) (*RegistrationReceipt, error) {
	ctx, span := tracer.Start(ctx, "engine.RegisterParticipant",
		trace.WithAttributes(attribute.String("node.id", nodeID)))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkTainted(); err != nil {
		return nil, err
	}

	tx, err := NewRegistrationTransaction(nodeID, quotas)
	if err != nil {
		return nil, err
	}

	if e.ledger.HasNode(nodeID) {
		return nil, &ValidationError{Field: "node_id", Reason: "node " + nodeID + " already registered"}
	}

	// Optimistic registration: the founding block references a roster
	// that already contains the new node
	if err := e.ledger.RegisterNode(nodeID, quotas); err != nil {
		return nil, err
	}
	if err := e.refreshRoster(); err != nil {
		e.ledger.RemoveNode(nodeID)
		return nil, err
	}

	rollback := func() {
		e.ledger.RemoveNode(nodeID)
		if err := e.refreshRoster(); err != nil {
			logger.Error("Failed to restore roster after rollback", "nodeId", nodeID, "error", err)
		}
	}

	candidate, err := e.mineCandidate(ctx, []Transaction{tx})
	if err != nil {
		rollback()
		return nil, err
	}

	approved, details := e.requestConsensus(ctx, candidate)
	if !approved {
		rollback()
		e.audit.Record(nodeID, "add_node", "rejected", voteMetadata(details))
		RecordTransactionProcessed(TxTypeAddNode, false)
		RecordBlockProcessed(false)
		e.persist(ctx)
		return nil, &ConsensusRejectedError{Details: details}
	}

	e.chain.Append(candidate)
	token, err := e.auth.IssueToken(nodeID)
	if err != nil {
		// Unreachable once the id validated, but never leave the node tokenless
		logger.Error("Failed to issue token for registered node", "nodeId", nodeID, "error", err)
	}

	e.audit.Record(nodeID, "add_node", "created", map[string]interface{}{
		"block_index": float64(candidate.Index),
	})
	RecordTransactionProcessed(TxTypeAddNode, true)
	RecordBlockProcessed(true)

	if err := e.persist(ctx); err != nil {
		return nil, err
	}

	return &RegistrationReceipt{
		ReceiptID:  uuid.New().String(),
		NodeID:     nodeID,
		Token:      token,
		BlockIndex: candidate.Index,
		BlockHash:  candidate.Hash,
		Votes:      details,
	}, nil
}

// ProposeAllocation runs the allocation pipeline for one node and resource
func (e *Engine) ProposeAllocation(ctx context.Context, nodeID string, resource ResourceType, amount float64) (*BlockReceipt, error) {
	return e.proposeResourceChange(ctx, TxTypeAllocate, nodeID, resource, amount)
}

// ProposeRelease runs the release pipeline for one node and resource
func (e *Engine) ProposeRelease(ctx context.Context, nodeID string, resource ResourceType, amount float64) (*BlockReceipt, error) {
	return e.proposeResourceChange(ctx, TxTypeRelease, nodeID, resource, amount)
}

func (e *Engine) proposeResourceChange(ctx context.Context, txType TransactionType, nodeID string, resource ResourceType, amount float64) (*BlockReceipt, error) {
	ctx, span := tracer.Start(ctx, "engine.ProposeResourceChange",
		trace.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("transaction.type", string(txType)),
			attribute.String("resource.type", string(resource)),
			attribute.Float64("resource.amount", amount)))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkTainted(); err != nil {
		return nil, err
	}

	var tx Transaction
	var err error
	if txType == TxTypeAllocate {
		tx, err = NewAllocationTransaction(nodeID, resource, amount)
	} else {
		tx, err = NewReleaseTransaction(nodeID, resource, amount)
	}
	if err != nil {
		return nil, err
	}

	if !e.ledger.HasNode(nodeID) {
		return nil, &ValidationError{Field: "node_id", Reason: "unknown node: " + nodeID}
	}

	if txType == TxTypeAllocate && !e.ledger.CanAllocate(nodeID, resource, amount) {
		return nil, &ValidationError{Field: "amount", Reason: "allocation would exceed quota for " + string(resource)}
	}
	if txType == TxTypeRelease && !e.ledger.CanRelease(nodeID, resource, amount) {
		return nil, &ValidationError{Field: "amount", Reason: "release exceeds current allocation for " + string(resource)}
	}

	candidate, err := e.mineCandidate(ctx, []Transaction{tx})
	if err != nil {
		return nil, err
	}

	approved, details := e.requestConsensus(ctx, candidate)
	if !approved {
		// Candidate block is discarded; no ledger mutation occurred
		e.audit.Record(nodeID, string(txType), "rejected", voteMetadata(details))
		RecordTransactionProcessed(txType, false)
		RecordBlockProcessed(false)
		e.persist(ctx)
		return nil, &ConsensusRejectedError{Details: details}
	}

	if txType == TxTypeAllocate {
		err = e.ledger.ApplyAllocation(nodeID, resource, amount)
	} else {
		err = e.ledger.ApplyRelease(nodeID, resource, amount)
	}
	if err != nil {
		// Preconditions were checked under the same lock; reaching this
		// means the candidate must be discarded unapplied
		return nil, err
	}

	e.chain.Append(candidate)
	e.audit.Record(nodeID, string(txType), "accepted", map[string]interface{}{
		"resource":    string(resource),
		"amount":      amount,
		"block_index": float64(candidate.Index),
	})
	RecordTransactionProcessed(txType, true)
	RecordBlockProcessed(true)

	if err := e.persist(ctx); err != nil {
		return nil, err
	}

	return &BlockReceipt{
		ReceiptID:  uuid.New().String(),
		BlockIndex: candidate.Index,
		BlockHash:  candidate.Hash,
		Votes:      details,
	}, nil
}

// mineCandidate builds the head-linked candidate block and runs the
// proof-of-work search, recording its cost
func (e *Engine) mineCandidate(ctx context.Context, txs []Transaction) (Block, error) {
	ctx, span := tracer.Start(ctx, "engine.mine")
	defer span.End()

	candidate := e.chain.NewCandidate(txs)
	start := time.Now()
	if _, err := e.chain.Mine(ctx, &candidate); err != nil {
		return Block{}, err
	}
	RecordMining(time.Since(start), candidate.Nonce)
	span.SetAttributes(
		attribute.Int64("block.index", int64(candidate.Index)),
		attribute.Int64("block.nonce", int64(candidate.Nonce)))
	return candidate, nil
}

func (e *Engine) requestConsensus(ctx context.Context, candidate Block) (bool, VoteDetails) {
	_, span := tracer.Start(ctx, "engine.consensus",
		trace.WithAttributes(attribute.Int64("block.index", int64(candidate.Index))))
	defer span.End()

	approved, details := e.gate.RequestConsensus(candidate, ValidateBlockStructure)
	span.SetAttributes(
		attribute.Bool("consensus.reached", approved),
		attribute.Int("consensus.votes_for", details.VotesFor),
		attribute.Int("consensus.votes_against", details.VotesAgainst))
	return approved, details
}

// persist writes the combined state under the pipeline lock
func (e *Engine) persist(ctx context.Context) error {
	_, span := tracer.Start(ctx, "engine.persist")
	defer span.End()

	err := e.store.Save(e.ledger.Snapshot(), e.chain.Blocks(), e.audit.Events())
	if err != nil {
		logger.Error("Failed to persist snapshot", "error", err)
	}
	return err
}

// Chain returns the serialized block sequence
func (e *Engine) Chain() []Block {
	return e.chain.Blocks()
}

// ValidateChain re-derives every block hash and checks linkage
func (e *Engine) ValidateChain() (bool, string) {
	return e.chain.Validate()
}

// AuditEvents returns the recorded audit trail
func (e *Engine) AuditEvents() []AuditEvent {
	return e.audit.Events()
}

// Nodes returns the per-node ledger summary
func (e *Engine) Nodes() map[string]NodeState {
	return e.ledger.Status()
}

// VerifyToken reports whether a token belongs to a registered node
func (e *Engine) VerifyToken(token string) bool {
	return e.auth.VerifyToken(token)
}

// Status reports a point-in-time summary
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	tainted, reason := e.tainted, e.taintReason
	e.mu.Unlock()

	return EngineStatus{
		Time:        time.Now().Format(time.RFC3339),
		Nodes:       e.ledger.NodeIDs(),
		Blocks:      e.chain.Length(),
		Difficulty:  e.chain.Difficulty(),
		IntegrityOk: !tainted,
		TaintReason: reason,
	}
}

func voteMetadata(details VoteDetails) map[string]interface{} {
	meta := map[string]interface{}{
		"votes_for":      float64(details.VotesFor),
		"votes_against":  float64(details.VotesAgainst),
		"abstentions":    float64(details.Abstentions),
		"required_votes": float64(details.RequiredVotes),
	}
	if details.Reason != "" {
		meta["reason"] = details.Reason
	}
	return meta
}
