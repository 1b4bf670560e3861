package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
)

// REPL is the interactive command loop over the shared dispatcher
type REPL struct {
	dispatcher *Dispatcher
	engine     *Engine
	in         io.Reader
	out        io.Writer
}

// NewREPL creates a REPL reading commands from in and printing to out
func NewREPL(dispatcher *Dispatcher, engine *Engine, in io.Reader, out io.Writer) *REPL {
	return &REPL{dispatcher: dispatcher, engine: engine, in: in, out: out}
}

// Run processes commands until exit/quit, EOF, or context cancellation
func (r *REPL) Run(ctx context.Context) {
	banner := pterm.DefaultBox.
		WithTitle("rationd").
		WithTitleTopCenter().
		Sprint("Permissioned resource-allocation ledger\nType 'help' for available commands")
	fmt.Fprintln(r.out, banner)

	scanner := bufio.NewScanner(r.in)

	for {
		if ctx.Err() != nil {
			return
		}

		fmt.Fprint(r.out, "rationd> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd := strings.ToLower(strings.Fields(line)[0])
		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(r.out, "Exiting.")
			return
		}

		result := r.dispatcher.Execute(ctx, line)
		r.render(cmd, result)
	}
}

func (r *REPL) render(cmd string, result CommandResult) {
	if !result.Success {
		fmt.Fprintln(r.out, pterm.Error.Sprint(result.Message))
		return
	}

	switch cmd {
	case "view_chain":
		fmt.Fprintln(r.out, result.Message)
		if chain, ok := result.Data["chain"].([]Block); ok {
			r.printChain(chain)
		}
	case "print_audit":
		fmt.Fprintln(r.out, result.Message)
		if events, ok := result.Data["events"].([]AuditEvent); ok {
			r.printAudit(events)
		}
	case "status":
		fmt.Fprintln(r.out, pterm.Info.Sprint(result.Message))
		for _, key := range []string{"time", "nodes", "blocks", "difficulty", "integrity_ok"} {
			fmt.Fprintf(r.out, "  %s: %v\n", key, result.Data[key])
		}
	case "help":
		fmt.Fprintln(r.out, result.Message)
	default:
		fmt.Fprintln(r.out, pterm.Success.Sprint(result.Message))
	}
}

func (r *REPL) printChain(chain []Block) {
	rows := pterm.TableData{{"Index", "Hash", "Previous", "Nonce", "Txs"}}
	for _, block := range chain {
		rows = append(rows, []string{
			fmt.Sprintf("%d", block.Index),
			truncateHash(block.Hash),
			truncateHash(block.PreviousHash),
			fmt.Sprintf("%d", block.Nonce),
			fmt.Sprintf("%d", len(block.Transactions)),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		fmt.Fprintf(r.out, "%v\n", chain)
		return
	}
	fmt.Fprintln(r.out, table)
}

func (r *REPL) printAudit(events []AuditEvent) {
	if len(events) == 0 {
		fmt.Fprintln(r.out, "(no audit events recorded)")
		return
	}

	rows := pterm.TableData{{"Timestamp", "Node", "Action", "Outcome"}}
	for _, event := range events {
		rows = append(rows, []string{
			fmt.Sprintf("%.3f", event.Timestamp),
			event.NodeID,
			event.Action,
			event.Outcome,
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		fmt.Fprintf(r.out, "%v\n", events)
		return
	}
	fmt.Fprintln(r.out, table)
}

func truncateHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}
