// Package control implements the auxiliary control-channel socket:
// short newline-framed admin commands (DUMP, MODULE, PARAM_SHELL,
// SANDBOX, METRICS) validated by an action-type tag, per SPEC_FULL.md
// §4.7. Unlike the request socket, this protocol is plain text, since
// its clients are humans and shell scripts rather than the trie-protocol
// library.
package control

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"paramd/client"
	"paramd/config"
	"paramd/metrics"
)

// MetricsSource is the minimal surface control needs from the in-process
// server to serve the METRICS verb: server.Server implements it.
type MetricsSource interface {
	Metrics() metrics.Stats
}

// Server listens on cfg.ControlSocketPath and dispatches each
// connection's framed commands.
type Server struct {
	cfg        config.Config
	svc        *client.Client
	reader     *client.Reader
	metricsSrc MetricsSource
	logger     *slog.Logger
}

// New builds a Server that talks to the main request socket as an
// ordinary client, reads the workspaces directly for cheap lookups (e.g.
// resolving SANDBOX's service name), and reads metrics straight off the
// in-process server instance rather than round-tripping the request
// socket for them.
func New(cfg config.Config, metricsSrc MetricsSource, logger *slog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		svc:        client.New(cfg.ServerSocketPath),
		reader:     client.NewReader(cfg.DACWorkspacePath, cfg.DefaultWorkspacePath, cfg.PersistWorkspacePath, cfg.WorkspaceCapacityBytes),
		metricsSrc: metricsSrc,
		logger:     logger,
	}
}

// Serve listens on cfg.ControlSocketPath until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("unix", s.cfg.ControlSocketPath)
	if err != nil {
		return fmt.Errorf("control: listen: %w", err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			default:
				return fmt.Errorf("control: accept: %w", err)
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(conn.(*net.UnixConn))
		}()
	}
}

// connState carries the state a connection accumulates across commands:
// currently just the pid a prior SANDBOX command selected.
type connState struct {
	sandboxPID int
}

func (s *Server) handleConn(conn *net.UnixConn) {
	defer conn.Close()

	st := &connState{}
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.dispatch(conn, st, line)
	}
}

func (s *Server) dispatch(conn *net.UnixConn, st *connState, line string) {
	tag, rest := splitTag(line)
	switch tag {
	case "DUMP":
		s.handleDump(conn, rest)
	case "MODULE":
		s.handleModule(conn, rest)
	case "PARAM_SHELL":
		s.handleParamShell(conn, st, rest)
	case "SANDBOX":
		s.handleSandbox(conn, st, rest)
	case "METRICS":
		s.handleMetrics(conn)
	default:
		s.logger.Warn("control: unrecognized action tag", "tag", tag)
		fmt.Fprintf(conn, "ERROR unknown control tag %q\n", tag)
	}
}

func splitTag(line string) (tag, rest string) {
	i := strings.IndexByte(line, ' ')
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}
