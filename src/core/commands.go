package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// CommandResult is the uniform response shape shared by the REPL and the
// socket API
type CommandResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Dispatcher translates command strings and structured requests into
// engine operations
type Dispatcher struct {
	engine *Engine
}

// NewDispatcher creates a dispatcher over an engine
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

const helpText = `Available commands:
  add_node <id> [cpu] [memory] [storage] [bandwidth] - Register a new node
  request_resource <id> <resource> <amount>          - Request resource allocation
  release_resource <id> <resource> <amount>          - Release allocated resource
  view_chain                                          - Display blockchain
  validate_chain                                      - Validate blockchain integrity
  print_audit                                         - Show audit log
  status                                              - Show system status
  help                                                - Show this help message
  exit/quit                                           - Exit`

// Execute parses a whitespace-separated command line and runs it
func (d *Dispatcher) Execute(ctx context.Context, line string) CommandResult {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return CommandResult{Success: false, Message: "Empty command"}
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "add_node":
		if len(args) < 1 {
			return CommandResult{Success: false, Message: "Usage: add_node <node_id> [cpu] [memory] [storage] [bandwidth]"}
		}
		quotas := make(map[ResourceType]float64, len(ResourceTypes))
		for i, resource := range ResourceTypes {
			quotas[resource] = 0
			if len(args) > i+1 {
				amount, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return CommandResult{Success: false, Message: "Invalid quota for " + string(resource) + ": " + args[i+1]}
				}
				quotas[resource] = amount
			}
		}
		return d.addNode(ctx, args[0], quotas)

	case "request_resource":
		if len(args) != 3 {
			return CommandResult{Success: false, Message: "Usage: request_resource <node_id> <resource> <amount>"}
		}
		return d.resourceChange(ctx, TxTypeAllocate, args[0], args[1], args[2])

	case "release_resource":
		if len(args) != 3 {
			return CommandResult{Success: false, Message: "Usage: release_resource <node_id> <resource> <amount>"}
		}
		return d.resourceChange(ctx, TxTypeRelease, args[0], args[1], args[2])

	case "view_chain":
		return CommandResult{
			Success: true,
			Message: "Blockchain retrieved",
			Data:    map[string]interface{}{"chain": d.engine.Chain()},
		}

	case "validate_chain":
		valid, reason := d.engine.ValidateChain()
		return CommandResult{
			Success: true,
			Message: reason,
			Data:    map[string]interface{}{"valid": valid},
		}

	case "print_audit":
		return CommandResult{
			Success: true,
			Message: "Audit log retrieved",
			Data:    map[string]interface{}{"events": d.engine.AuditEvents()},
		}

	case "status":
		status := d.engine.Status()
		return CommandResult{
			Success: true,
			Message: "System status",
			Data: map[string]interface{}{
				"time":         status.Time,
				"nodes":        status.Nodes,
				"blocks":       status.Blocks,
				"difficulty":   status.Difficulty,
				"integrity_ok": status.IntegrityOk,
			},
		}

	case "help":
		return CommandResult{Success: true, Message: helpText}

	default:
		return CommandResult{Success: false, Message: "Unknown command: " + cmd + ". Type 'help' for available commands."}
	}
}

// Structured parameter shapes for the socket API. Loosely-typed request
// payloads are decoded onto these with mapstructure.

type addNodeParams struct {
	NodeID string             `mapstructure:"node_id"`
	Quotas map[string]float64 `mapstructure:"quotas"`
}

type resourceChangeParams struct {
	NodeID   string  `mapstructure:"node_id"`
	Resource string  `mapstructure:"resource"`
	Amount   float64 `mapstructure:"amount"`
}

// ExecuteRequest runs a command given structured parameters, as sent over
// the socket API. Commands without parameters fall through to the same
// handlers as the command-line form.
func (d *Dispatcher) ExecuteRequest(ctx context.Context, command string, params map[string]interface{}) CommandResult {
	cmd := strings.ToLower(strings.TrimSpace(command))

	if params == nil {
		return d.Execute(ctx, command)
	}

	switch cmd {
	case "add_node":
		var p addNodeParams
		if err := mapstructure.Decode(params, &p); err != nil {
			return CommandResult{Success: false, Message: "Invalid parameters: " + err.Error()}
		}
		quotas, err := parseQuotas(p.Quotas)
		if err != nil {
			return CommandResult{Success: false, Message: err.Error()}
		}
		return d.addNode(ctx, p.NodeID, quotas)

	case "request_resource", "release_resource":
		var p resourceChangeParams
		if err := mapstructure.Decode(params, &p); err != nil {
			return CommandResult{Success: false, Message: "Invalid parameters: " + err.Error()}
		}
		txType := TxTypeAllocate
		if cmd == "release_resource" {
			txType = TxTypeRelease
		}
		return d.typedResourceChange(ctx, txType, p.NodeID, p.Resource, p.Amount)

	default:
		return d.Execute(ctx, command)
	}
}

func (d *Dispatcher) addNode(ctx context.Context, nodeID string, quotas map[ResourceType]float64) CommandResult {
	receipt, err := d.engine.RegisterParticipant(ctx, nodeID, quotas)
	if err != nil {
		return CommandResult{Success: false, Message: err.Error()}
	}
	return CommandResult{
		Success: true,
		Message: "Node " + nodeID + " registered; block " + strconv.FormatUint(receipt.BlockIndex, 10) + " accepted",
		Data: map[string]interface{}{
			"receipt": receipt,
		},
	}
}

func (d *Dispatcher) resourceChange(ctx context.Context, txType TransactionType, nodeID, resourceArg, amountArg string) CommandResult {
	amount, err := strconv.ParseFloat(amountArg, 64)
	if err != nil {
		return CommandResult{Success: false, Message: "Invalid amount: " + amountArg}
	}
	return d.typedResourceChange(ctx, txType, nodeID, resourceArg, amount)
}

func (d *Dispatcher) typedResourceChange(ctx context.Context, txType TransactionType, nodeID, resourceArg string, amount float64) CommandResult {
	resource, err := ParseResourceType(resourceArg)
	if err != nil {
		return CommandResult{Success: false, Message: err.Error()}
	}

	var receipt *BlockReceipt
	var verb string
	if txType == TxTypeAllocate {
		receipt, err = d.engine.ProposeAllocation(ctx, nodeID, resource, amount)
		verb = "allocated to"
	} else {
		receipt, err = d.engine.ProposeRelease(ctx, nodeID, resource, amount)
		verb = "released from"
	}
	if err != nil {
		return CommandResult{Success: false, Message: err.Error()}
	}

	data := map[string]interface{}{"receipt": receipt}
	if nodeStatus, ok := d.engine.Nodes()[nodeID]; ok {
		data["node_status"] = nodeStatus
	}
	return CommandResult{
		Success: true,
		Message: strconv.FormatFloat(amount, 'g', -1, 64) + " " + string(resource) + " " + verb + " " + nodeID + "; block " + strconv.FormatUint(receipt.BlockIndex, 10) + " accepted",
		Data:    data,
	}
}
