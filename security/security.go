// Package security implements the access-control decision for every
// parameter request: DAC evaluation against a resolved Label, an optional
// pluggable mandatory-access hook, and a write-side veto list enforced
// regardless of DAC bits, per SPEC_FULL.md §4.2.
package security

import (
	perrors "paramd/errors"
	"paramd/workspace"
)

// Credentials identifies the caller making a request, taken from the
// connection's SO_PEERCRED-derived uid/gid.
type Credentials struct {
	UID uint32
	GID uint32
	// Tag is the caller's mandatory-access context, if the platform has one.
	Tag string
}

// MACHook evaluates a mandatory-access decision between the resource's
// label tag and the caller's tag. A nil hook always allows.
type MACHook func(resourceTag, callerTag string, mode workspace.AccessMode) bool

// Hooks bundles the pluggable pieces of the access-control decision,
// constructed once at server startup (Design Note 3 of SPEC_FULL.md:
// explicit struct fields over package-level state).
type Hooks struct {
	MAC MACHook
	// VetoPrefixes names prefixes that may only be written by VetoUID,
	// regardless of DAC or MAC (e.g. "sys.powerctrl").
	VetoPrefixes []string
	VetoUID      uint32
}

// DefaultHooks returns a Hooks with no MAC hook and no veto prefixes.
func DefaultHooks() Hooks {
	return Hooks{}
}

func (h Hooks) vetoedPrefix(name string) (string, bool) {
	for _, p := range h.VetoPrefixes {
		if len(name) >= len(p) && name[:len(p)] == p {
			return p, true
		}
	}
	return "", false
}

// Check resolves name's label in ws and decides whether creds may perform
// mode against it. Returns nil on OK, or a *paramd/errors.ParamError with
// Kind ErrPermission on FORBIDDEN.
func Check(ws *workspace.Workspace, h Hooks, name string, creds Credentials, mode workspace.AccessMode) error {
	if mode == workspace.AccessWrite {
		if prefix, vetoed := h.vetoedPrefix(name); vetoed && creds.UID != h.VetoUID {
			return perrors.WrapWithDetail(nil, perrors.ErrPermission, "Check", "name matches veto prefix "+prefix)
		}
	}

	idx := ws.FindLabel(name)
	label := ws.Label(idx)

	if !label.Check(creds.UID, creds.GID, mode) {
		return perrors.WrapWithName(perrors.ErrForbidden, perrors.ErrPermission, "Check", name)
	}

	if h.MAC != nil && !h.MAC(label.Tag, creds.Tag, mode) {
		return perrors.WrapWithName(perrors.ErrForbidden, perrors.ErrPermission, "Check", name)
	}

	return nil
}
