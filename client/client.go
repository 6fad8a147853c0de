// Package client implements the paramd client side of spec.md §4.6: a
// read-only attach to the three memory-mapped workspaces, and a socket
// client for the operations that must go through the server (set, wait,
// watch, save, dump).
package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	perrors "paramd/errors"
	"paramd/protocol"
	"paramd/workspace"
)

// Reader is a read-only attach to the three workspaces, in the same
// persist-over-default-over-dac precedence the server applies on read.
// The three backing files are mapped on the first Get; it never dials the
// server.
type Reader struct {
	once sync.Once
	err  error

	dacPath, defPath, persistPath string
	capacity                     uint32

	dac     *workspace.Workspace
	def     *workspace.Workspace
	persist *workspace.Workspace
}

// NewReader returns a Reader that attaches lazily on its first Get call.
// Building one is cheap and safe to do at package-init time; the mmap
// attach itself is deferred and idempotent (spec.md §4.6).
func NewReader(dacPath, defaultPath, persistPath string, capacity uint32) *Reader {
	return &Reader{dacPath: dacPath, defPath: defaultPath, persistPath: persistPath, capacity: capacity}
}

func (r *Reader) attach() {
	r.once.Do(func() {
		dac, err := workspace.OpenFile(r.dacPath, r.capacity)
		if err != nil {
			r.err = perrors.Wrap(err, perrors.ErrResource, "attach")
			return
		}
		def, err := workspace.OpenFile(r.defPath, r.capacity)
		if err != nil {
			r.err = perrors.Wrap(err, perrors.ErrResource, "attach")
			return
		}
		persist, err := workspace.OpenFile(r.persistPath, r.capacity)
		if err != nil {
			r.err = perrors.Wrap(err, perrors.ErrResource, "attach")
			return
		}
		r.dac, r.def, r.persist = dac, def, persist
	})
}

// Get performs a direct shared-memory lookup, attaching on first call.
func (r *Reader) Get(name string) (string, error) {
	r.attach()
	if r.err != nil {
		return "", r.err
	}
	if v, _, ok := r.persist.Read(name); ok {
		return v, nil
	}
	if v, _, ok := r.def.Read(name); ok {
		return v, nil
	}
	if v, _, ok := r.dac.Read(name); ok {
		return v, nil
	}
	return "", perrors.WrapWithName(perrors.ErrParamNotFound, perrors.ErrNotFound, "Get", name)
}

// connectBackoff is the pause before a single ECONNREFUSED retry, per
// spec.md §4.6.
const connectBackoff = 50 * time.Millisecond

// Client dials the server's request socket for set/wait/watch/save/dump.
// A Client is not safe for concurrent use by multiple goroutines; callers
// that need concurrent requests should use one Client per goroutine or
// serialize their own access, matching the one-request-in-flight-at-a-time
// shape of the wire protocol (spec.md §6).
type Client struct {
	socketPath string
	nextID     uint32

	mu    sync.Mutex
	cache map[string]string // const.-prefixed names only, per spec.md §4.6
}

// New returns a Client that dials socketPath on demand.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath, cache: make(map[string]string)}
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.Dial("unix", c.socketPath)
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		return nil, perrors.Wrap(perrors.ErrConnRefused, perrors.ErrInternal, "dial")
	}
	time.Sleep(connectBackoff)
	conn, err = net.Dial("unix", c.socketPath)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrConnRefused, perrors.ErrInternal, "dial")
	}
	return conn, nil
}

func (c *Client) roundTrip(op protocol.Op, name, value string) (*protocol.Message, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	c.mu.Lock()
	c.nextID++
	reqID := c.nextID
	c.mu.Unlock()

	req := protocol.NewRequest(op, reqID, name, value)
	if err := protocol.Encode(conn, req); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrInternal, "roundTrip")
	}
	resp, err := protocol.Decode(conn)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrInternal, "roundTrip")
	}
	return resp, nil
}

func resultErr(op string, r protocol.Result) error {
	switch r {
	case protocol.ResultOK:
		return nil
	case protocol.ResultNotFound:
		return perrors.Wrap(perrors.ErrParamNotFound, perrors.ErrNotFound, op)
	case protocol.ResultForbidden:
		return perrors.Wrap(perrors.ErrForbidden, perrors.ErrPermission, op)
	case protocol.ResultTimeout:
		return perrors.Wrap(perrors.ErrWaitTimeout, perrors.ErrTimeout, op)
	case protocol.ResultNoSpace:
		return perrors.Wrap(perrors.ErrWorkspaceFull, perrors.ErrResource, op)
	case protocol.ResultBusy:
		return perrors.Wrap(perrors.ErrFlushBusy, perrors.ErrBusy, op)
	default:
		return perrors.WrapWithDetail(nil, perrors.ErrInvalidConfig, op, "invalid request")
	}
}

// Set writes name=value through the server.
func (c *Client) Set(name, value string) error {
	resp, err := c.roundTrip(protocol.OpSet, name, value)
	if err != nil {
		return err
	}
	if err := resultErr("Set", protocol.ResultOf(resp)); err != nil {
		return err
	}
	if workspace.IsConstName(name) {
		c.mu.Lock()
		c.cache[name] = value
		c.mu.Unlock()
	}
	return nil
}

// Wait blocks server-side until name's value matches pattern or the
// server's configured default wait timeout elapses, returning the
// matching value. The timeout argument is not sent: the wire request has
// no field for it, so the server's default applies whatever is passed.
func (c *Client) Wait(name, pattern string, timeout time.Duration) (string, error) {
	resp, err := c.roundTrip(protocol.OpWait, name, pattern)
	if err != nil {
		return "", err
	}
	if err := resultErr("Wait", protocol.ResultOf(resp)); err != nil {
		return "", err
	}
	return resp.Value, nil
}

// Save forces an out-of-cycle persistence flush.
func (c *Client) Save() error {
	resp, err := c.roundTrip(protocol.OpSave, "", "")
	if err != nil {
		return err
	}
	return resultErr("Save", protocol.ResultOf(resp))
}

// Dump returns the server's newline-separated "name=value" snapshot for
// prefix (or everything, if prefix is empty).
func (c *Client) Dump(prefix string) (string, error) {
	resp, err := c.roundTrip(protocol.OpDump, prefix, "")
	if err != nil {
		return "", err
	}
	if err := resultErr("Dump", protocol.ResultOf(resp)); err != nil {
		return "", err
	}
	return resp.Value, nil
}

// CachedConst returns a previously observed const. value without a round
// trip, if this Client has successfully set it before.
func (c *Client) CachedConst(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[name]
	return v, ok
}

// Watch opens a long-lived WATCH_ADD stream for prefix and returns events
// as they arrive until ctx is cancelled, at which point it sends
// WATCH_DEL and closes the connection.
func (c *Client) Watch(ctx context.Context, prefix string) (<-chan protocol.Message, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.nextID++
	reqID := c.nextID
	c.mu.Unlock()

	req := protocol.NewRequest(protocol.OpWatchAdd, reqID, prefix, "")
	if err := protocol.Encode(conn, req); err != nil {
		conn.Close()
		return nil, perrors.Wrap(err, perrors.ErrInternal, "Watch")
	}
	ack, err := protocol.Decode(conn)
	if err != nil {
		conn.Close()
		return nil, perrors.Wrap(err, perrors.ErrInternal, "Watch")
	}
	if err := resultErr("Watch", protocol.ResultOf(ack)); err != nil {
		conn.Close()
		return nil, err
	}

	events := make(chan protocol.Message, 16)
	go func() {
		defer close(events)
		defer conn.Close()
		go func() {
			<-ctx.Done()
			protocol.Encode(conn, protocol.NewRequest(protocol.OpWatchDel, reqID, "", ""))
		}()
		for {
			msg, err := protocol.Decode(conn)
			if err != nil {
				return
			}
			select {
			case events <- *msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
