// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Name/value validation errors.
var (
	// ErrEmptyName indicates the name is empty.
	ErrEmptyName = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "name cannot be empty",
	}

	// ErrInvalidName indicates the name contains an invalid segment or exceeds the length bound.
	ErrInvalidName = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "invalid parameter name",
	}

	// ErrValueTooLong indicates the value exceeds the bound for its parameter class.
	ErrValueTooLong = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "value exceeds maximum length",
	}

	// ErrNameTooLong indicates the name exceeds the 96-byte bound.
	ErrNameTooLong = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "name exceeds maximum length",
	}

	// ErrEmbeddedNUL indicates the value contains an embedded NUL byte.
	ErrEmbeddedNUL = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "value contains embedded NUL",
	}

	// ErrInvalidUTF8 indicates the value is not valid UTF-8.
	ErrInvalidUTF8 = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "value is not valid UTF-8",
	}
)

// Lookup errors.
var (
	// ErrParamNotFound indicates the name has no value-bearing node.
	ErrParamNotFound = &ParamError{
		Kind:   ErrNotFound,
		Detail: "parameter not found",
	}
)

// Workspace errors.
var (
	// ErrWorkspaceFull indicates the workspace arena has no remaining capacity.
	ErrWorkspaceFull = &ParamError{
		Kind:   ErrResource,
		Detail: "workspace is full",
	}

	// ErrWorkspaceChecksum indicates the workspace backing file failed integrity validation at boot.
	ErrWorkspaceChecksum = &ParamError{
		Kind:   ErrInternal,
		Detail: "workspace checksum mismatch",
	}

	// ErrWorkspaceCorrupt indicates a structurally inconsistent offset was found while walking the trie.
	ErrWorkspaceCorrupt = &ParamError{
		Kind:   ErrInternal,
		Detail: "workspace structure is corrupt",
	}
)

// Security errors.
var (
	// ErrForbidden indicates a DAC or MAC check denied the operation.
	ErrForbidden = &ParamError{
		Kind:   ErrPermission,
		Detail: "operation forbidden",
	}

	// ErrVetoed indicates the name matches a forbidden-write prefix regardless of DAC bits.
	ErrVetoed = &ParamError{
		Kind:   ErrPermission,
		Detail: "name is reserved for privileged writers",
	}

	// ErrLabelAssignAfterBoot indicates an explicit label assignment was attempted after bootstrap closed.
	ErrLabelAssignAfterBoot = &ParamError{
		Kind:   ErrInvalidState,
		Detail: "label assignment only permitted during bootstrap",
	}
)

// Wait/watch errors.
var (
	// ErrWaitTimeout indicates a wait exceeded its deadline without a matching value.
	ErrWaitTimeout = &ParamError{
		Kind:   ErrTimeout,
		Detail: "wait timed out",
	}

	// ErrInvalidPattern indicates an unsupported wildcard pattern was supplied to wait.
	ErrInvalidPattern = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "invalid wait pattern",
	}
)

// Persistence errors.
var (
	// ErrFlushBusy indicates a forced save collided with an in-progress flush.
	ErrFlushBusy = &ParamError{
		Kind:   ErrBusy,
		Detail: "persistence flush already in progress",
	}

	// ErrPersistIO indicates the persist file could not be written.
	ErrPersistIO = &ParamError{
		Kind:   ErrInternal,
		Detail: "failed to write persistence file",
	}

	// ErrPersistLoadFatal indicates both the current and previous generation persist files are unusable.
	ErrPersistLoadFatal = &ParamError{
		Kind:   ErrInternal,
		Detail: "failed to load any persistence generation",
	}
)

// Protocol errors.
var (
	// ErrBadMagic indicates the request header magic did not match.
	ErrBadMagic = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "bad request magic",
	}

	// ErrUnknownOp indicates an unrecognized opcode.
	ErrUnknownOp = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "unknown operation",
	}

	// ErrConnRefused indicates the client could not reach the server socket.
	ErrConnRefused = &ParamError{
		Kind:   ErrInternal,
		Detail: "connection refused",
	}
)

// Control channel errors.
var (
	// ErrNamespaceJoin indicates a setns operation failed.
	ErrNamespaceJoin = &ParamError{
		Kind:   ErrNamespace,
		Detail: "failed to join namespace",
	}

	// ErrPrivilegeDrop indicates uid/gid drop failed before exec.
	ErrPrivilegeDrop = &ParamError{
		Kind:   ErrCapability,
		Detail: "failed to drop privileges",
	}

	// ErrUnknownControlTag indicates an unrecognized control-channel action tag.
	ErrUnknownControlTag = &ParamError{
		Kind:   ErrInvalidConfig,
		Detail: "unknown control tag",
	}
)
