// Package server implements the paramd request loop: a local-domain
// socket accept loop that ties the workspace, security, persistence, and
// trigger packages together, per SPEC_FULL.md §4.5.
package server

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"paramd/config"
	perrors "paramd/errors"
	"paramd/logging"
	"paramd/metrics"
	"paramd/persist"
	"paramd/protocol"
	"paramd/security"
	"paramd/trigger"
	"paramd/workspace"
)

// Server owns the three workspaces and every subsystem wired to them: the
// access-control hooks, the persistence store, and the wait/watch
// registry. One Server serves both the request socket and, via the
// control package, the auxiliary control socket.
type Server struct {
	cfg config.Config

	dac     *workspace.Workspace
	def     *workspace.Workspace
	persist *workspace.Workspace

	hooks   security.Hooks
	store   *persist.Store
	reg     *trigger.Registry
	metrics *metrics.Collector

	logger *slog.Logger
}

// New builds a Server over already-opened workspaces. Bootstrap must be
// called once before Serve.
func New(cfg config.Config, dac, def, per *workspace.Workspace, hooks security.Hooks, logger *slog.Logger) *Server {
	s := &Server{cfg: cfg, dac: dac, def: def, persist: per, hooks: hooks, logger: logger}
	s.reg = trigger.NewRegistry(s)
	s.metrics = metrics.New()
	s.store = persist.NewStore(cfg.PersistFilePath, s, logger)
	s.store.SetDirtyFlushHook(s.metrics.IncDirtyFlush)
	return s
}

// Metrics returns a point-in-time snapshot of the NO_SPACE-alarm,
// dirty-flush, and waiter-queue-depth counters named by SPEC_FULL.md's
// Metrics component.
func (s *Server) Metrics() metrics.Stats {
	return s.metrics.Snapshot(s.reg.Len())
}

// Read implements trigger.Reader and persist.Source: a precedence lookup
// across persist, default, dac, per spec.md §3.5.
func (s *Server) Read(name string) (string, uint64, bool) {
	if v, c, ok := s.persist.Read(name); ok {
		return v, c, true
	}
	if v, c, ok := s.def.Read(name); ok {
		return v, c, true
	}
	if v, c, ok := s.dac.Read(name); ok {
		return v, c, true
	}
	return "", 0, false
}

func (s *Server) targetWorkspace(name string) *workspace.Workspace {
	if s.cfg.HasPersistPrefix(name) {
		return s.persist
	}
	return s.def
}

// Bootstrap replays the durable persistence file into the persist
// workspace, then closes label-assignment bootstrap on all three
// workspaces. Must be called once before Serve starts accepting
// connections.
func (s *Server) Bootstrap() error {
	err := persist.Load(s.cfg.PersistFilePath, s.logger, func(name, value string) {
		if _, werr := s.persist.Write(name, value); werr != nil {
			s.logger.Error("persist: failed to replay entry", "name", name, "error", werr)
		}
	})
	s.dac.CloseBootstrap()
	s.def.CloseBootstrap()
	s.persist.CloseBootstrap()
	return err
}

// StartPersistFlusher runs the flush ticker until stop is closed.
func (s *Server) StartPersistFlusher(stop <-chan struct{}) {
	go s.store.Run(s.cfg.PersistInterval(), stop)
}

// Credentials resolves the peer credentials of a Unix domain connection
// via SO_PEERCRED.
func Credentials(conn *net.UnixConn) (security.Credentials, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return security.Credentials{}, perrors.Wrap(err, perrors.ErrInternal, "Credentials")
	}
	var cred *unix.Ucred
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return security.Credentials{}, perrors.Wrap(ctrlErr, perrors.ErrInternal, "Credentials")
	}
	if sockErr != nil {
		return security.Credentials{}, perrors.Wrap(sockErr, perrors.ErrInternal, "Credentials")
	}
	return security.Credentials{UID: cred.Uid, GID: cred.Gid}, nil
}

// Serve listens on cfg.ServerSocketPath until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("unix", s.cfg.ServerSocketPath)
	if err != nil {
		return perrors.Wrap(err, perrors.ErrInternal, "Serve")
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
				return perrors.Wrap(err, perrors.ErrInternal, "Serve")
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn.(*net.UnixConn))
		}()
	}
}

// handleConn runs the IDLE/PROCESSING/STREAMING/CLOSING state machine for
// one connection, per spec.md §4.5.
func (s *Server) handleConn(ctx context.Context, conn *net.UnixConn) {
	defer conn.Close()

	creds, err := Credentials(conn)
	if err != nil {
		s.logger.Warn("server: failed to resolve peer credentials, closing", "error", err)
		return
	}

	connID := uuid.NewString()
	connLog := s.logger.With("conn", connID)

	for {
		req, err := protocol.Decode(conn)
		if err != nil {
			return // CLOSING: any I/O or framing error tears the connection down.
		}

		log := logging.WithPeer(logging.WithOperation(connLog, req.Header.Op.String()), int(creds.UID), int(creds.GID))

		if req.Header.Op == protocol.OpWatchAdd {
			s.streamWatch(ctx, conn, req, creds, log)
			continue
		}

		resp := s.dispatch(ctx, req, creds, log)
		if err := protocol.Encode(conn, resp); err != nil {
			return
		}
	}
}

// dispatch performs admission checks and executes a single non-streaming
// operation, returning the response to write back.
func (s *Server) dispatch(ctx context.Context, req *protocol.Message, creds security.Credentials, log *slog.Logger) *protocol.Message {
	op := req.Header.Op
	reqID := req.Header.RequestID

	if op != protocol.OpDump {
		if err := workspace.ValidateName(req.Name); err != nil {
			log.Warn("invalid name", "name", req.Name, "error", err)
			return protocol.NewResponse(op, reqID, protocol.ResultInvalid, "")
		}
	}

	switch op {
	case protocol.OpSet:
		if err := workspace.ValidateValue(req.Name, req.Value); err != nil {
			log.Warn("invalid value", "name", req.Name, "error", err)
			return protocol.NewResponse(op, reqID, protocol.ResultInvalid, "")
		}
		if err := security.Check(s.dac, s.hooks, req.Name, creds, workspace.AccessWrite); err != nil {
			log.Info("set denied", "name", req.Name)
			return protocol.NewResponse(op, reqID, resultForErr(err), "")
		}
		commit, err := s.targetWorkspace(req.Name).Write(req.Name, req.Value)
		if err != nil {
			result := resultForErr(err)
			if result == protocol.ResultNoSpace {
				log.Error("set: workspace full", "name", req.Name, "error", err)
				s.metrics.IncNoSpaceAlarm()
			}
			return protocol.NewResponse(op, reqID, result, "")
		}
		if s.cfg.HasPersistPrefix(req.Name) {
			s.store.Mark(req.Name)
		}
		s.reg.Notify(req.Name, req.Value, commit)
		return protocol.NewResponse(op, reqID, protocol.ResultOK, "")

	case protocol.OpGet:
		if err := security.Check(s.dac, s.hooks, req.Name, creds, workspace.AccessRead); err != nil {
			return protocol.NewResponse(op, reqID, protocol.ResultForbidden, "")
		}
		value, _, ok := s.Read(req.Name)
		if !ok {
			return protocol.NewResponse(op, reqID, protocol.ResultNotFound, "")
		}
		return protocol.NewResponse(op, reqID, protocol.ResultOK, value)

	case protocol.OpWait:
		if err := security.Check(s.dac, s.hooks, req.Name, creds, workspace.AccessRead); err != nil {
			return protocol.NewResponse(op, reqID, protocol.ResultForbidden, "")
		}
		timeout := s.cfg.WaitDefaultTimeout()
		ok := s.reg.Wait(req.Name, req.Value, timeout, ctx.Done())
		if !ok {
			return protocol.NewResponse(op, reqID, protocol.ResultTimeout, "")
		}
		value, _, _ := s.Read(req.Name)
		return protocol.NewResponse(op, reqID, protocol.ResultOK, value)

	case protocol.OpSave:
		if err := s.store.Flush(); err != nil {
			return protocol.NewResponse(op, reqID, resultForErr(err), "")
		}
		return protocol.NewResponse(op, reqID, protocol.ResultOK, "")

	case protocol.OpDump:
		if req.Name != "" {
			if err := security.Check(s.dac, s.hooks, req.Name, creds, workspace.AccessRead); err != nil {
				return protocol.NewResponse(op, reqID, protocol.ResultForbidden, "")
			}
		}
		return protocol.NewResponse(op, reqID, protocol.ResultOK, s.dumpText(req.Name))

	default:
		return protocol.NewResponse(op, reqID, protocol.ResultInvalid, "")
	}
}

// streamWatch transitions the connection to STREAMING: it forwards
// matching writes as they happen until the client sends WATCH_DEL or
// disconnects.
func (s *Server) streamWatch(ctx context.Context, conn *net.UnixConn, req *protocol.Message, creds security.Credentials, log *slog.Logger) {
	reqID := req.Header.RequestID

	if err := security.Check(s.dac, s.hooks, req.Name, creds, workspace.AccessWatch); err != nil {
		protocol.Encode(conn, protocol.NewResponse(protocol.OpWatchAdd, reqID, protocol.ResultForbidden, ""))
		return
	}

	events, cancel := s.reg.Watch(req.Name)
	defer cancel()

	if err := protocol.Encode(conn, protocol.NewResponse(protocol.OpWatchAdd, reqID, protocol.ResultOK, "")); err != nil {
		return
	}

	delCh := make(chan struct{})
	go func() {
		defer close(delCh)
		for {
			next, err := protocol.Decode(conn)
			if err != nil {
				return
			}
			if next.Header.Op == protocol.OpWatchDel {
				protocol.Encode(conn, protocol.NewResponse(protocol.OpWatchDel, next.Header.RequestID, protocol.ResultOK, ""))
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			msg := protocol.NewResponse(protocol.OpWatchAdd, reqID, protocol.ResultOK, ev.Value)
			msg.Name = ev.Name
			if err := protocol.Encode(conn, msg); err != nil {
				return
			}
		case <-delCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// dumpText renders every name under prefix (or every name) as
// newline-separated "name=value" lines, applying the same
// persist-over-default-over-dac precedence as Read so a shadowed default
// value is not shown alongside its persisted override.
func (s *Server) dumpText(prefix string) string {
	seen := map[string]bool{}
	var sb strings.Builder
	visit := func(name, value string, commit uint64) bool {
		if seen[name] {
			return true
		}
		seen[name] = true
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(value)
		sb.WriteByte('\n')
		return true
	}
	s.persist.ForeachPrefix(prefix, visit)
	s.def.ForeachPrefix(prefix, visit)
	s.dac.ForeachPrefix(prefix, visit)
	return sb.String()
}

// resultForErr maps any error dispatch produces to its wire RESULT code,
// defaulting to an internal error if it isn't one of ours.
func resultForErr(err error) protocol.Result {
	kind, ok := perrors.GetKind(err)
	if !ok {
		kind = perrors.ErrInternal
	}
	return protocol.KindToResult(kind)
}
