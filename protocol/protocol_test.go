package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	perrors "paramd/errors"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"set", NewRequest(OpSet, 1, "const.product.model", "X")},
		{"get_no_value", NewRequest(OpGet, 2, "const.product.model", "")},
		{"wait_wildcard", NewRequest(OpWait, 3, "boot.stage", "*")},
		{"response_ok", NewResponse(OpGet, 2, ResultOK, "X")},
		{"response_not_found", NewResponse(OpGet, 4, ResultNotFound, "")},
		{"empty_name_and_value", NewRequest(OpDump, 5, "", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tt.msg))

			got, err := Decode(&buf)
			require.NoError(t, err)

			require.Equal(t, tt.msg.Header.Op, got.Header.Op)
			require.Equal(t, tt.msg.Header.Flags, got.Header.Flags)
			require.Equal(t, tt.msg.Header.RequestID, got.Header.RequestID)
			require.Equal(t, tt.msg.Name, got.Name)
			require.Equal(t, tt.msg.Value, got.Value)
			require.Equal(t, Magic, got.Header.Magic)
		})
	}
}

func TestDecode_BadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestDecode_NameTooLong(t *testing.T) {
	msg := NewRequest(OpSet, 1, "x", "y")
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, msg))

	// Corrupt the encoded name_len field to exceed MaxNameLen.
	raw := buf.Bytes()
	raw[12] = 0xff
	raw[13] = 0xff

	_, err := Decode(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestKindToResult(t *testing.T) {
	require.Equal(t, ResultNotFound, KindToResult(perrors.ErrNotFound))
	require.Equal(t, ResultForbidden, KindToResult(perrors.ErrPermission))
	require.Equal(t, ResultTimeout, KindToResult(perrors.ErrTimeout))
	require.Equal(t, ResultNoSpace, KindToResult(perrors.ErrResource))
	require.Equal(t, ResultBusy, KindToResult(perrors.ErrBusy))
	require.Equal(t, ResultInvalid, KindToResult(perrors.ErrInvalidConfig))
}
