package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
)

// RunDemo walks the full pipeline once: register a node, allocate and
// release resources, then inspect and validate the resulting chain.
// Intended for a quick local demonstration against a fresh state file.
func RunDemo(ctx context.Context, engine *Engine) error {
	pterm.DefaultSection.Println("rationd demo sequence")

	receipt, err := engine.RegisterParticipant(ctx, "demo-node", map[ResourceType]float64{
		ResourceCPU:    4.0,
		ResourceMemory: 8.0,
	})
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Registered demo-node (block %d, token %s...)", receipt.BlockIndex, receipt.Token[:12])

	steps := []struct {
		verb     string
		resource ResourceType
		amount   float64
		propose  func(context.Context, string, ResourceType, float64) (*BlockReceipt, error)
	}{
		{"Allocated", ResourceCPU, 2.0, engine.ProposeAllocation},
		{"Allocated", ResourceMemory, 3.0, engine.ProposeAllocation},
		{"Released", ResourceCPU, 1.0, engine.ProposeRelease},
	}

	for _, step := range steps {
		blockReceipt, err := step.propose(ctx, "demo-node", step.resource, step.amount)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("%s %g %s (block %d, %d/%d votes)",
			step.verb, step.amount, step.resource,
			blockReceipt.BlockIndex,
			blockReceipt.Votes.VotesFor, blockReceipt.Votes.RequiredVotes)
	}

	pterm.DefaultSection.Println("Blockchain")
	chainJSON, err := json.MarshalIndent(engine.Chain(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(chainJSON))

	valid, reason := engine.ValidateChain()
	if valid {
		pterm.Success.Printfln("Chain valid: %s", reason)
	} else {
		pterm.Error.Printfln("Chain invalid: %s", reason)
	}

	pterm.DefaultSection.Println("Audit log")
	for _, event := range engine.AuditEvents() {
		fmt.Printf("[%.3f] node=%s action=%s outcome=%s\n",
			event.Timestamp, event.NodeID, event.Action, event.Outcome)
	}

	return nil
}
