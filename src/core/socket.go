package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
)

// SocketServer exposes the command dispatcher over TCP for programmatic
// access. The protocol is line-delimited JSON: each request is one
// {"command": ..., "params": ...} object, each response one
// {"success", "message", "data"} object.
type SocketServer struct {
	dispatcher *Dispatcher
	port       string
}

// socketRequest is the wire shape of one command. Params is optional;
// without it the command string is parsed like a REPL line.
type socketRequest struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// NewSocketServer creates a socket API server on the given port
func NewSocketServer(dispatcher *Dispatcher, port string) *SocketServer {
	return &SocketServer{dispatcher: dispatcher, port: port}
}

// Start accepts connections until the context is cancelled. Each
// connection gets its own goroutine; the engine's pipeline lock
// serializes the actual commits.
func (s *SocketServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("Socket API listening", "port", s.port)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Failed to accept socket connection", "error", err)
			return err
		}

		logger.Info("Socket connection accepted", "remote", conn.RemoteAddr().String())
		go s.handleConnection(ctx, conn)
	}
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req socketRequest
		if err := json.Unmarshal(line, &req); err != nil {
			if err := encoder.Encode(CommandResult{Success: false, Message: "Invalid JSON"}); err != nil {
				return
			}
			continue
		}

		result := s.dispatcher.ExecuteRequest(ctx, req.Command, req.Params)
		if err := encoder.Encode(result); err != nil {
			logger.Error("Failed to write socket response", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Debug("Socket connection read error", "remote", conn.RemoteAddr().String(), "error", err)
	}
}
