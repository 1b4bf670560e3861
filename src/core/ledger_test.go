package main

import (
	"math"
	"testing"
)

func newTestLedger(t *testing.T) *ResourceLedger {
	t.Helper()

	ledger := NewResourceLedger()
	err := ledger.RegisterNode("n1", map[ResourceType]float64{
		ResourceCPU:     4.0,
		ResourceStorage: 10.0,
	})
	if err != nil {
		t.Fatalf("Unexpected error registering test node: %v", err)
	}
	return ledger
}

func TestRegisterNode(t *testing.T) {
	ledger := newTestLedger(t)

	if !ledger.HasNode("n1") {
		t.Error("Expected n1 to be registered")
	}

	status := ledger.Status()["n1"]
	if status.Quotas[ResourceCPU] != 4.0 {
		t.Errorf("Expected CPU quota 4.0, got %f", status.Quotas[ResourceCPU])
	}
	if status.Allocated[ResourceCPU] != 0 {
		t.Errorf("Expected zero initial allocation, got %f", status.Allocated[ResourceCPU])
	}
	if status.Status != NodeStatusActive {
		t.Errorf("Expected status active, got %s", status.Status)
	}
}

func TestRegisterNode_Duplicate(t *testing.T) {
	ledger := newTestLedger(t)

	err := ledger.RegisterNode("n1", map[ResourceType]float64{ResourceCPU: 1.0})
	if err == nil {
		t.Error("Expected error for duplicate node id, got nil")
	}
}

func TestRegisterNode_EmptyID(t *testing.T) {
	ledger := NewResourceLedger()

	if err := ledger.RegisterNode("", nil); err == nil {
		t.Error("Expected error for empty node id, got nil")
	}
}

func TestRegisterNode_NegativeQuota(t *testing.T) {
	ledger := NewResourceLedger()

	err := ledger.RegisterNode("n2", map[ResourceType]float64{ResourceCPU: -1.0})
	if err == nil {
		t.Error("Expected error for negative quota, got nil")
	}
	if ledger.HasNode("n2") {
		t.Error("Expected node not to be registered after quota rejection")
	}
}

func TestCanAllocate(t *testing.T) {
	ledger := newTestLedger(t)

	tests := []struct {
		name     string
		nodeID   string
		resource ResourceType
		amount   float64
		expected bool
	}{
		{"within quota", "n1", ResourceCPU, 2.0, true},
		{"exactly quota", "n1", ResourceCPU, 4.0, true},
		{"over quota", "n1", ResourceCPU, 4.5, false},
		{"zero amount", "n1", ResourceCPU, 0, false},
		{"negative amount", "n1", ResourceCPU, -1.0, false},
		{"unknown node", "ghost", ResourceCPU, 1.0, false},
		{"resource without quota", "n1", ResourceMemory, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledger.CanAllocate(tt.nodeID, tt.resource, tt.amount)
			if got != tt.expected {
				t.Errorf("Expected CanAllocate=%v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCanAllocate_AccountsForExistingAllocation(t *testing.T) {
	ledger := newTestLedger(t)

	if err := ledger.ApplyAllocation("n1", ResourceCPU, 3.0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if ledger.CanAllocate("n1", ResourceCPU, 1.5) {
		t.Error("Expected allocation beyond remaining quota to be refused")
	}
	if !ledger.CanAllocate("n1", ResourceCPU, 1.0) {
		t.Error("Expected allocation within remaining quota to be allowed")
	}
}

func TestApplyAllocation_FailsLoudlyWhenOutOfOrder(t *testing.T) {
	ledger := newTestLedger(t)

	// Called without a prior CanAllocate check that would have failed
	err := ledger.ApplyAllocation("n1", ResourceCPU, 100.0)
	if err == nil {
		t.Fatal("Expected error for over-quota allocation, got nil")
	}

	if got := ledger.Status()["n1"].Allocated[ResourceCPU]; got != 0 {
		t.Errorf("Expected allocation unchanged after failure, got %f", got)
	}
}

func TestAllocateReleaseRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)

	before := ledger.Status()["n1"].Allocated[ResourceCPU]

	if err := ledger.ApplyAllocation("n1", ResourceCPU, 2.5); err != nil {
		t.Fatalf("Unexpected allocation error: %v", err)
	}
	if err := ledger.ApplyRelease("n1", ResourceCPU, 2.5); err != nil {
		t.Fatalf("Unexpected release error: %v", err)
	}

	after := ledger.Status()["n1"].Allocated[ResourceCPU]
	if math.Abs(after-before) > 1e-9 {
		t.Errorf("Expected allocation restored to %f, got %f", before, after)
	}
}

func TestApplyRelease_ClampsResidualNoise(t *testing.T) {
	ledger := newTestLedger(t)

	// 0.1+0.2 in binary floating point leaves a residual after releasing 0.3
	if err := ledger.ApplyAllocation("n1", ResourceCPU, 0.1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := ledger.ApplyAllocation("n1", ResourceCPU, 0.2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := ledger.ApplyRelease("n1", ResourceCPU, 0.3); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := ledger.Status()["n1"].Allocated[ResourceCPU]; got != 0 {
		t.Errorf("Expected residual clamped to exactly 0, got %g", got)
	}
}

func TestApplyRelease_OverRelease(t *testing.T) {
	ledger := newTestLedger(t)

	if err := ledger.ApplyAllocation("n1", ResourceCPU, 1.0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := ledger.ApplyRelease("n1", ResourceCPU, 2.0); err == nil {
		t.Error("Expected error for over-release, got nil")
	}
	if ledger.CanRelease("n1", ResourceCPU, 2.0) {
		t.Error("Expected CanRelease false for over-release")
	}
	if !ledger.CanRelease("n1", ResourceCPU, 1.0) {
		t.Error("Expected CanRelease true for exact allocation")
	}
}

func TestRemoveNode(t *testing.T) {
	ledger := newTestLedger(t)

	if err := ledger.RemoveNode("n1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ledger.HasNode("n1") {
		t.Error("Expected n1 removed")
	}

	if err := ledger.RemoveNode("n1"); err == nil {
		t.Error("Expected error removing unknown node, got nil")
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.RegisterNode("n2", map[ResourceType]float64{ResourceMemory: 8.0}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := ledger.ApplyAllocation("n1", ResourceCPU, 2.0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	snapshot := ledger.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Expected 2 nodes in snapshot, got %d", len(snapshot))
	}
	if snapshot[0].NodeID != "n1" || snapshot[1].NodeID != "n2" {
		t.Errorf("Expected snapshot sorted by node id, got %s, %s", snapshot[0].NodeID, snapshot[1].NodeID)
	}

	restored := NewResourceLedger()
	if err := restored.Restore(snapshot); err != nil {
		t.Fatalf("Unexpected restore error: %v", err)
	}

	if got := restored.Status()["n1"].Allocated[ResourceCPU]; got != 2.0 {
		t.Errorf("Expected restored allocation 2.0, got %f", got)
	}
	if !restored.HasNode("n2") {
		t.Error("Expected n2 restored")
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	ledger := newTestLedger(t)

	snapshot := ledger.Snapshot()
	snapshot[0].Allocated[ResourceCPU] = 999.0

	if got := ledger.Status()["n1"].Allocated[ResourceCPU]; got != 0 {
		t.Errorf("Expected ledger unaffected by snapshot mutation, got %f", got)
	}
}

func TestRestore_RejectsDuplicateIDs(t *testing.T) {
	ledger := NewResourceLedger()

	nodes := []NodeState{
		{NodeID: "n1", Quotas: map[ResourceType]float64{}, Allocated: map[ResourceType]float64{}},
		{NodeID: "n1", Quotas: map[ResourceType]float64{}, Allocated: map[ResourceType]float64{}},
	}
	if err := ledger.Restore(nodes); err == nil {
		t.Error("Expected error restoring duplicate node ids, got nil")
	}
}

func TestNodeIDs_Sorted(t *testing.T) {
	ledger := NewResourceLedger()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if err := ledger.RegisterNode(id, map[ResourceType]float64{ResourceCPU: 1.0}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	ids := ledger.NodeIDs()
	expected := []string{"alpha", "bravo", "charlie"}
	for i, id := range expected {
		if ids[i] != id {
			t.Errorf("Expected ids[%d]=%s, got %s", i, id, ids[i])
		}
	}
}
