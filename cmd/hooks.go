package cmd

import (
	"os"

	"paramd/security"
)

// defaultHooks builds the access-control veto policy SPEC_FULL.md §4.2
// names: sys.powerctrl is writable only by the uid the server itself
// runs as, regardless of any DAC label on that subtree.
func defaultHooks() security.Hooks {
	return security.Hooks{
		VetoPrefixes: []string{"sys.powerctrl"},
		VetoUID:      uint32(os.Getuid()),
	}
}
