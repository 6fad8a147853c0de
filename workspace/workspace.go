package workspace

import (
	"encoding/binary"
	"regexp"
	"strings"
	"sync"

	perrors "paramd/errors"
)

// MaxNameLen bounds names this package will accept, matching the wire
// limit in the protocol package. MaxValueLen and MaxConstValueLen give the
// general-parameter and const-parameter value caps from spec.md §3.1.
const (
	MaxNameLen       = 96
	MaxValueLen      = 96
	MaxConstValueLen = 4096
)

// segPattern is the per-segment character class spec.md §3.1 requires:
// one or more of [A-Za-z0-9_-].
var segPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Workspace is one memory-mapped trie: a header, a label catalog, and a
// node/value arena. Reads are lock-free; writes are serialized by mu,
// since spec.md §3.3 only ever has one writer (the server) per workspace.
type Workspace struct {
	mu       sync.Mutex
	buf      []byte
	arena    *arena
	labels   *labelTable
	closer   func() error
	bootDone bool
}

// Open wraps an already-sized, already-mapped buffer as a Workspace. If
// the buffer is unformatted (magic mismatch and all-zero), it is
// initialized fresh; a non-zero buffer without the magic is rejected with
// ErrWorkspaceChecksum. closer is called by Close to release the backing
// mapping or file handle; it may be nil.
func Open(buf []byte, closer func() error) (*Workspace, error) {
	if uint32(len(buf)) < arenaStart {
		return nil, perrors.WrapWithDetail(nil, perrors.ErrInvalidConfig, "Open", "buffer smaller than minimum workspace size")
	}
	capacity := uint32(len(buf))
	if readHeaderMagic(buf) != WorkspaceMagic {
		for _, b := range buf {
			if b != 0 {
				return nil, perrors.Wrap(perrors.ErrWorkspaceChecksum, perrors.ErrInternal, "Open")
			}
		}
		if err := initWorkspace(buf, capacity); err != nil {
			return nil, err
		}
	}
	return &Workspace{
		buf:    buf,
		arena:  newArena(buf, readCapacity(buf)),
		labels: newLabelTable(buf),
		closer: closer,
	}, nil
}

func initWorkspace(buf []byte, capacity uint32) error {
	writeHeader(buf, capacity)
	a := newArena(buf, capacity)
	t := newLabelTable(buf)
	if _, err := t.Add(DefaultDenyLabel); err != nil {
		return err
	}
	rootOff, err := newNode(a, "", 0)
	if err != nil {
		return err
	}
	setRootOffset(buf, rootOff)
	return nil
}

// Close releases the backing mapping, if any.
func (w *Workspace) Close() error {
	if w.closer != nil {
		return w.closer()
	}
	return nil
}

// OpenMemory builds a Workspace over a plain heap buffer, with no backing
// file or mapping. Used by tests and by tools that don't need cross-process
// visibility.
func OpenMemory(capacity uint32) (*Workspace, error) {
	return Open(make([]byte, capacity), nil)
}

func rootOffset(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offRootNode:])
}

func setRootOffset(buf []byte, off uint32) {
	binary.LittleEndian.PutUint32(buf[offRootNode:], off)
}

// GlobalCommit returns the current commit counter, the cursor a reader
// compares against to decide whether it has seen a given write.
func (w *Workspace) GlobalCommit() uint64 {
	return atomicLoadU64(w.buf, offGlobalCommit)
}

// bumpGlobalCommit publishes a new commit id. It is stored last in the
// write path, after every other field the commit is associated with, per
// the ordering invariant in SPEC_FULL.md §9.
func (w *Workspace) bumpGlobalCommit() uint64 {
	next := w.GlobalCommit() + 1
	atomicStoreU64(w.buf, offGlobalCommit, next)
	return next
}

func splitName(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

// walk descends from root following segs, returning the offset of the
// final matching node and true, or false if the path doesn't exist.
func (w *Workspace) walk(segs []string) (uint32, bool) {
	cur := rootOffset(w.buf)
	for _, seg := range segs {
		child, ok := w.findChild(cur, seg)
		if !ok {
			return 0, false
		}
		cur = child
	}
	return cur, true
}

func (w *Workspace) findChild(parent uint32, seg string) (uint32, bool) {
	child := node(w.buf, parent).firstChild()
	for child != 0 {
		n := node(w.buf, child)
		if n.seg() == seg {
			return child, true
		}
		child = n.nextSibling()
	}
	return 0, false
}

// Read performs a lock-free lookup of name, returning its value and the
// commit id it was last written at. Safe for concurrent use by any number
// of readers, in this process or another mapping the same file.
func (w *Workspace) Read(name string) (string, uint64, bool) {
	segs := splitName(name)
	off, ok := w.walk(segs)
	if !ok {
		return "", 0, false
	}
	n := node(w.buf, off)
	vOff := n.valueOffset()
	if vOff == 0 {
		return "", 0, false
	}
	for {
		value, commit, ok := readValueSlot(w.buf, vOff, n)
		if ok {
			return value, commit, true
		}
	}
}

// FindLabel returns the label index governing name: the label carried by
// the deepest existing node on name's path, inheriting from its nearest
// ancestor when intermediate segments don't exist as nodes of their own.
func (w *Workspace) FindLabel(name string) uint16 {
	segs := splitName(name)
	cur := rootOffset(w.buf)
	label := node(w.buf, cur).labelIndex()
	for _, seg := range segs {
		child, ok := w.findChild(cur, seg)
		if !ok {
			break
		}
		cur = child
		label = node(w.buf, cur).labelIndex()
	}
	return label
}

// Label resolves idx to its Label record.
func (w *Workspace) Label(idx uint16) Label {
	return w.labels.Get(idx)
}

// CloseBootstrap permanently disables AssignLabel. Called by the server
// once it finishes applying its configured label assignments and before it
// starts accepting client connections.
func (w *Workspace) CloseBootstrap() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bootDone = true
}

// AssignLabel records l against the node at name's exact path, creating
// intermediate nodes as needed, and returns its index. This is a
// bootstrap-only operation: it fails once CloseBootstrap has been called,
// since label assignment is not itself commit-tracked and has no place in
// the running server's request path.
func (w *Workspace) AssignLabel(name string, l Label) (uint16, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bootDone {
		return 0, perrors.Wrap(perrors.ErrLabelAssignAfterBoot, perrors.ErrInvalidState, "AssignLabel")
	}

	idx, err := w.labels.FindOrAdd(l)
	if err != nil {
		return 0, err
	}
	off, err := w.ensurePath(splitName(name))
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint16(w.buf[off+nodeOffLabelIndex:], idx)
	return idx, nil
}

// ensurePath walks segs from root, creating missing nodes, and returns
// the offset of the final node. Only called by the single writer.
func (w *Workspace) ensurePath(segs []string) (uint32, error) {
	cur := rootOffset(w.buf)
	for _, seg := range segs {
		child, ok := w.findChild(cur, seg)
		if ok {
			cur = child
			continue
		}
		parentLabel := node(w.buf, cur).labelIndex()
		newOff, err := newNode(w.arena, seg, parentLabel)
		if err != nil {
			return 0, err
		}
		w.linkChild(cur, newOff)
		cur = newOff
	}
	return cur, nil
}

// linkChild splices child in as a new first_child of parent, atomically
// publishing the link so concurrent readers either see the old list or
// the new one, never a torn pointer.
func (w *Workspace) linkChild(parent, child uint32) {
	p := node(w.buf, parent)
	c := node(w.buf, child)
	c.setNextSibling(p.firstChild())
	p.setFirstChild(child)
}

// Write publishes a new value for name, creating the path if necessary,
// and returns the commit id the write was stamped with. Concurrent
// callers are serialized by w.mu.
func (w *Workspace) Write(name, value string) (uint64, error) {
	if name == "" || len(name) > MaxNameLen {
		return 0, perrors.WrapWithDetail(nil, perrors.ErrInvalidName, "Write", "name length out of bounds")
	}
	if err := ValidateValue(name, value); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	off, err := w.ensurePath(splitName(name))
	if err != nil {
		return 0, err
	}
	n := node(w.buf, off)
	vOff := n.valueOffset()
	if vOff == 0 || uint32(len(value)) > uint32(valueCapacity(w.buf, vOff)) {
		limit := MaxValueLen
		if IsConstName(name) {
			limit = MaxConstValueLen
		}
		capacity := growCapacity(len(value), limit)
		newOff, err := allocValueSlot(w.arena, capacity)
		if err != nil {
			return 0, err
		}
		vOff = newOff
	}

	commit := w.bumpGlobalCommit()
	if err := writeValueSlot(w.buf, vOff, value, n, commit); err != nil {
		return 0, err
	}
	// value_offset is published after the slot is fully written, so a
	// reader who observes the new offset always finds valid data there.
	n.setValueOffset(vOff)
	return commit, nil
}

// growCapacity rounds a requested value size up to the next power of two
// (bounded by limit), so that small subsequent writes can reuse the same
// slot in place rather than reallocating on every change.
func growCapacity(n, limit int) uint16 {
	c := 16
	for c < n {
		c *= 2
	}
	if c > limit {
		c = limit
	}
	return uint16(c)
}

// ForeachPrefix visits every name under prefix (or every name, if prefix
// is empty) in depth-first order, calling visit with each name, its
// current value, and the commit it was last written at. Iteration stops
// early if visit returns false. Used by the DUMP control verb.
func (w *Workspace) ForeachPrefix(prefix string, visit func(name, value string, commit uint64) bool) {
	start := rootOffset(w.buf)
	prefixName := ""
	if prefix != "" {
		off, ok := w.walk(splitName(prefix))
		if !ok {
			return
		}
		start = off
		prefixName = prefix
	}
	w.walkSubtree(start, prefixName, visit)
}

func (w *Workspace) walkSubtree(off uint32, name string, visit func(string, string, uint64) bool) bool {
	n := node(w.buf, off)
	if vOff := n.valueOffset(); vOff != 0 {
		for {
			value, commit, ok := readValueSlot(w.buf, vOff, n)
			if ok {
				if !visit(name, value, commit) {
					return false
				}
				break
			}
		}
	}
	child := n.firstChild()
	for child != 0 {
		c := node(w.buf, child)
		childName := c.seg()
		if name != "" {
			childName = name + "." + childName
		}
		if !w.walkSubtree(child, childName, visit) {
			return false
		}
		child = c.nextSibling()
	}
	return true
}

// ValidateName reports whether name satisfies the wire-level length and
// character constraints shared by every path in the trie.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return perrors.WrapWithDetail(nil, perrors.ErrInvalidName, "ValidateName", "length out of bounds")
	}
	for _, seg := range strings.Split(name, ".") {
		if seg == "" || len(seg) > maxSegLen {
			return perrors.WrapWithDetail(nil, perrors.ErrInvalidName, "ValidateName", "empty or oversized segment")
		}
		if !segPattern.MatchString(seg) {
			return perrors.WrapWithDetail(nil, perrors.ErrInvalidName, "ValidateName", "segment contains characters outside [A-Za-z0-9_-]")
		}
	}
	return nil
}

// ValidateValue reports whether value fits within the wire-level bound for
// name: const.-namespaced parameters get the larger MaxConstValueLen cap,
// everything else is held to the tighter general-parameter cap.
func ValidateValue(name, value string) error {
	limit := MaxValueLen
	if IsConstName(name) {
		limit = MaxConstValueLen
	}
	if len(value) > limit {
		return perrors.Wrap(perrors.ErrValueTooLong, perrors.ErrInvalidConfig, "ValidateValue")
	}
	return nil
}

// IsConstName reports whether name is under the "const." namespace, whose
// values get the larger value cap and may be cached by clients. Write does
// not reject a second write to such a name.
func IsConstName(name string) bool {
	return strings.HasPrefix(name, "const.")
}
