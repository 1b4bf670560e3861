package main

import (
	"fmt"
	"sort"
	"sync"
)

// releaseEpsilon absorbs floating rounding noise after a release: any
// residual allocation below it is clamped to exactly zero. A bounded
// tolerance, not an invariant relaxation.
const releaseEpsilon = 1e-12

// NodeStatusActive is the status assigned to every registered node
const NodeStatusActive = "active"

// ResourceLedger tracks per-participant quotas and allocations for the
// fixed set of resource kinds. Mutations happen only through the
// consensus-gated pipeline; the ledger itself re-asserts every invariant
// rather than trusting call order.
type ResourceLedger struct {
	mu    sync.RWMutex
	nodes map[string]*NodeState
}

// NewResourceLedger creates an empty ledger
func NewResourceLedger() *ResourceLedger {
	return &ResourceLedger{nodes: make(map[string]*NodeState)}
}

// RegisterNode adds a participant with the given quotas. Fails on a
// duplicate id or a negative quota. Allocations start at zero for every
// resource kind present in the quotas.
func (rl *ResourceLedger) RegisterNode(nodeID string, quotas map[ResourceType]float64) error {
	if nodeID == "" {
		return &ValidationError{Field: "node_id", Reason: "node id cannot be empty"}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if _, exists := rl.nodes[nodeID]; exists {
		return &ValidationError{Field: "node_id", Reason: fmt.Sprintf("node %s already registered", nodeID)}
	}

	node := &NodeState{
		NodeID:    nodeID,
		Quotas:    make(map[ResourceType]float64, len(quotas)),
		Allocated: make(map[ResourceType]float64, len(quotas)),
		Status:    NodeStatusActive,
	}
	for rt, q := range quotas {
		if _, err := ParseResourceType(string(rt)); err != nil {
			return err
		}
		if q < 0 {
			return &ValidationError{Field: "quotas", Reason: fmt.Sprintf("quota for %s cannot be negative", rt)}
		}
		node.Quotas[rt] = q
		node.Allocated[rt] = 0
	}

	rl.nodes[nodeID] = node
	registeredNodesGauge.Set(float64(len(rl.nodes)))

	logger.Info("Registered node in resource ledger", "nodeId", nodeID, "resources", len(node.Quotas))
	return nil
}

// RemoveNode deletes a participant. Used only as the compensating action
// when a node's founding block is rejected by consensus after the node was
// already registered optimistically.
func (rl *ResourceLedger) RemoveNode(nodeID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	node, exists := rl.nodes[nodeID]
	if !exists {
		return &ValidationError{Field: "node_id", Reason: fmt.Sprintf("unknown node: %s", nodeID)}
	}

	for rt := range node.Allocated {
		resourceAllocatedGauge.DeleteLabelValues(nodeID, string(rt))
	}
	delete(rl.nodes, nodeID)
	registeredNodesGauge.Set(float64(len(rl.nodes)))

	logger.Info("Removed node from resource ledger", "nodeId", nodeID)
	return nil
}

// HasNode reports whether a participant is registered
func (rl *ResourceLedger) HasNode(nodeID string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	_, exists := rl.nodes[nodeID]
	return exists
}

// CanAllocate reports whether the node can take on `amount` more of the
// resource without exceeding its quota
func (rl *ResourceLedger) CanAllocate(nodeID string, resource ResourceType, amount float64) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	node, exists := rl.nodes[nodeID]
	if !exists {
		return false
	}
	quota, known := node.Quotas[resource]
	if !known {
		return false
	}
	if amount <= 0 {
		return false
	}
	return node.Allocated[resource]+amount <= quota
}

// ApplyAllocation mutates the node's allocation. The caller must have
// confirmed CanAllocate under the pipeline lock; this method re-asserts
// the invariant and fails loudly rather than clamping if called out of order.
func (rl *ResourceLedger) ApplyAllocation(nodeID string, resource ResourceType, amount float64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	node, exists := rl.nodes[nodeID]
	if !exists {
		return &ValidationError{Field: "node_id", Reason: fmt.Sprintf("unknown node: %s", nodeID)}
	}
	quota, known := node.Quotas[resource]
	if !known {
		return &ValidationError{Field: "resource", Reason: fmt.Sprintf("node %s holds no quota for %s", nodeID, resource)}
	}
	if amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	if node.Allocated[resource]+amount > quota {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("allocation would exceed quota for %s", resource)}
	}

	node.Allocated[resource] += amount
	resourceAllocatedGauge.WithLabelValues(nodeID, string(resource)).Set(node.Allocated[resource])
	return nil
}

// CanRelease reports whether the node currently holds at least `amount`
// of the resource
func (rl *ResourceLedger) CanRelease(nodeID string, resource ResourceType, amount float64) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	node, exists := rl.nodes[nodeID]
	if !exists {
		return false
	}
	if _, known := node.Allocated[resource]; !known {
		return false
	}
	if amount <= 0 {
		return false
	}
	return node.Allocated[resource] >= amount
}

// ApplyRelease subtracts from the node's allocation, clamping any residual
// below releaseEpsilon to exactly zero. Fails loudly on over-release.
func (rl *ResourceLedger) ApplyRelease(nodeID string, resource ResourceType, amount float64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	node, exists := rl.nodes[nodeID]
	if !exists {
		return &ValidationError{Field: "node_id", Reason: fmt.Sprintf("unknown node: %s", nodeID)}
	}
	if _, known := node.Allocated[resource]; !known {
		return &ValidationError{Field: "resource", Reason: fmt.Sprintf("node %s holds no allocation for %s", nodeID, resource)}
	}
	if amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	if node.Allocated[resource] < amount {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("cannot release %g %s; only %g allocated", amount, resource, node.Allocated[resource])}
	}

	node.Allocated[resource] -= amount
	if node.Allocated[resource] < releaseEpsilon {
		node.Allocated[resource] = 0
	}
	resourceAllocatedGauge.WithLabelValues(nodeID, string(resource)).Set(node.Allocated[resource])
	return nil
}

// NodeIDs returns the registered node ids in sorted order
func (rl *ResourceLedger) NodeIDs() []string {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	ids := make([]string, 0, len(rl.nodes))
	for id := range rl.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of every node, ordered by id, for persistence
func (rl *ResourceLedger) Snapshot() []NodeState {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	ids := make([]string, 0, len(rl.nodes))
	for id := range rl.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]NodeState, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyNodeState(rl.nodes[id]))
	}
	return out
}

// Restore replaces the ledger contents with previously persisted nodes
func (rl *ResourceLedger) Restore(nodes []NodeState) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	restored := make(map[string]*NodeState, len(nodes))
	for i := range nodes {
		node := copyNodeState(&nodes[i])
		if node.NodeID == "" {
			return &ValidationError{Field: "node_id", Reason: "persisted node has empty id"}
		}
		if _, dup := restored[node.NodeID]; dup {
			return &ValidationError{Field: "node_id", Reason: fmt.Sprintf("persisted node %s appears twice", node.NodeID)}
		}
		if node.Quotas == nil {
			node.Quotas = make(map[ResourceType]float64)
		}
		if node.Allocated == nil {
			node.Allocated = make(map[ResourceType]float64)
		}
		if node.Status == "" {
			node.Status = NodeStatusActive
		}
		restored[node.NodeID] = &node
	}

	rl.nodes = restored
	registeredNodesGauge.Set(float64(len(rl.nodes)))
	for _, node := range rl.nodes {
		for rt, amt := range node.Allocated {
			resourceAllocatedGauge.WithLabelValues(node.NodeID, string(rt)).Set(amt)
		}
	}
	return nil
}

// Status returns a per-node summary keyed by node id
func (rl *ResourceLedger) Status() map[string]NodeState {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	out := make(map[string]NodeState, len(rl.nodes))
	for id, node := range rl.nodes {
		out[id] = copyNodeState(node)
	}
	return out
}

func copyNodeState(node *NodeState) NodeState {
	copied := NodeState{
		NodeID:    node.NodeID,
		Status:    node.Status,
		Quotas:    make(map[ResourceType]float64, len(node.Quotas)),
		Allocated: make(map[ResourceType]float64, len(node.Allocated)),
	}
	for rt, q := range node.Quotas {
		copied.Quotas[rt] = q
	}
	for rt, a := range node.Allocated {
		copied.Allocated[rt] = a
	}
	return copied
}
