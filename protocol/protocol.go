// Package protocol implements the paramd client/server wire format: a
// fixed-size little-endian header followed by a name and an optional value.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	perrors "paramd/errors"
)

// Magic identifies a well-formed paramd request or response header.
const Magic uint32 = 0x77777777

// HeaderSize is the encoded size of Header in bytes.
const HeaderSize = 4 + 2 + 2 + 4 + 4 + 4

// Size bounds from the data model (spec.md §3.1). MaxConstValueLen is the
// largest value any name can carry on the wire; Decode only enforces this
// coarse bound to cap allocation size. The tighter general-vs-const.
// distinction (96 vs 4096 bytes) is a workspace-layer concern and is
// enforced by workspace.ValidateValue once the name is known.
const (
	MaxNameLen       = 96
	MaxConstValueLen = 4096
)

// Op identifies the requested operation.
type Op uint16

// Operation codes, matching the wire format exactly.
const (
	OpSet      Op = 1
	OpGet      Op = 2
	OpWait     Op = 3
	OpWatchAdd Op = 4
	OpWatchDel Op = 5
	OpSave     Op = 6
	OpDump     Op = 7
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "SET"
	case OpGet:
		return "GET"
	case OpWait:
		return "WAIT"
	case OpWatchAdd:
		return "WATCH_ADD"
	case OpWatchDel:
		return "WATCH_DEL"
	case OpSave:
		return "SAVE"
	case OpDump:
		return "DUMP"
	default:
		return fmt.Sprintf("OP(%d)", uint16(o))
	}
}

// Result is carried in a response header's Flags field.
type Result uint16

// Result codes, matching the wire format exactly.
const (
	ResultOK        Result = 0
	ResultNotFound  Result = 1
	ResultForbidden Result = 2
	ResultTimeout   Result = 3
	ResultNoSpace   Result = 4
	ResultInvalid   Result = 5
	ResultBusy      Result = 6
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultNotFound:
		return "NOT_FOUND"
	case ResultForbidden:
		return "FORBIDDEN"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultNoSpace:
		return "NO_SPACE"
	case ResultInvalid:
		return "INVALID"
	case ResultBusy:
		return "BUSY"
	default:
		return fmt.Sprintf("RESULT(%d)", uint16(r))
	}
}

// KindToResult maps an errors.ErrorKind to its wire RESULT code.
func KindToResult(kind perrors.ErrorKind) Result {
	switch kind {
	case perrors.ErrNotFound:
		return ResultNotFound
	case perrors.ErrPermission:
		return ResultForbidden
	case perrors.ErrTimeout:
		return ResultTimeout
	case perrors.ErrResource:
		return ResultNoSpace
	case perrors.ErrBusy:
		return ResultBusy
	case perrors.ErrInvalidConfig:
		return ResultInvalid
	default:
		return ResultInvalid
	}
}

// Header is the fixed-size prefix shared by requests and responses.
type Header struct {
	Magic     uint32
	Op        Op
	Flags     uint16 // request: reserved; response: Result code
	RequestID uint32
	NameLen   uint32
	ValueLen  uint32
}

// Message is a header paired with its name/value payload.
type Message struct {
	Header Header
	Name   string
	Value  string
}

// Encode writes a Message to w in wire format.
func Encode(w io.Writer, m *Message) error {
	nameLen := uint32(len(m.Name))
	valueLen := uint32(len(m.Value))

	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(m.Header.Op))
	binary.LittleEndian.PutUint16(buf[6:8], m.Header.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], m.Header.RequestID)
	binary.LittleEndian.PutUint32(buf[12:16], nameLen)
	binary.LittleEndian.PutUint32(buf[16:20], valueLen)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if nameLen > 0 {
		if _, err := io.WriteString(w, m.Name); err != nil {
			return fmt.Errorf("write name: %w", err)
		}
	}
	if valueLen > 0 {
		if _, err := io.WriteString(w, m.Value); err != nil {
			return fmt.Errorf("write value: %w", err)
		}
	}
	return nil
}

// Decode reads a Message from r, validating the magic and declared
// lengths before allocating buffers for the payload.
func Decode(r io.Reader) (*Message, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return nil, perrors.WrapWithDetail(nil, perrors.ErrInvalidConfig, "decode", "bad request magic")
	}

	m := &Message{
		Header: Header{
			Magic:     magic,
			Op:        Op(binary.LittleEndian.Uint16(buf[4:6])),
			Flags:     binary.LittleEndian.Uint16(buf[6:8]),
			RequestID: binary.LittleEndian.Uint32(buf[8:12]),
			NameLen:   binary.LittleEndian.Uint32(buf[12:16]),
			ValueLen:  binary.LittleEndian.Uint32(buf[16:20]),
		},
	}

	if m.Header.NameLen > MaxNameLen {
		return nil, perrors.WrapWithDetail(nil, perrors.ErrInvalidConfig, "decode", "name_len exceeds bound")
	}
	if m.Header.ValueLen > MaxConstValueLen {
		return nil, perrors.WrapWithDetail(nil, perrors.ErrInvalidConfig, "decode", "value_len exceeds bound")
	}

	if m.Header.NameLen > 0 {
		name := make([]byte, m.Header.NameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("read name: %w", err)
		}
		m.Name = string(name)
	}
	if m.Header.ValueLen > 0 {
		value := make([]byte, m.Header.ValueLen)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, fmt.Errorf("read value: %w", err)
		}
		m.Value = string(value)
	}
	return m, nil
}

// NewRequest builds a request Message for the given operation.
func NewRequest(op Op, requestID uint32, name, value string) *Message {
	return &Message{
		Header: Header{Op: op, RequestID: requestID},
		Name:   name,
		Value:  value,
	}
}

// NewResponse builds a response Message echoing the request's op and id.
func NewResponse(op Op, requestID uint32, result Result, value string) *Message {
	return &Message{
		Header: Header{Op: op, Flags: uint16(result), RequestID: requestID},
		Value:  value,
	}
}

// ResultOf extracts the Result code carried in a response's Flags field.
func ResultOf(m *Message) Result {
	return Result(m.Header.Flags)
}
