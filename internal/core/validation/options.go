package validation

import (
	"fmt"
	"strings"

	"github.com/artpar/harbor/internal/core/deployment"
)

// =============================================================================
// Deployment Option Validation Functions
// =============================================================================

// ValidateApplyOptions validates the options of a deployment run.
// Returns the field name and error message if validation fails.
// Returns empty strings if all fields are valid.
//
// Example:
//
//	field, msg := ValidateApplyOptions(opts)
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateApplyOptions(opts deployment.ApplyOptions) (field, message string) {
	if strings.TrimSpace(opts.Playbook) == "" {
		return "playbook", "playbook is required"
	}
	if strings.TrimSpace(opts.Inventory) == "" {
		return "inventory", "inventory is required"
	}
	if strings.TrimSpace(opts.Branch) == "" {
		return "branch", "branch is required"
	}
	for i, spec := range opts.VaultPasswords {
		if strings.TrimSpace(spec) == "" {
			return "vault_passwords", fmt.Sprintf("vault password specification %d is empty", i+1)
		}
	}
	return "", ""
}

// ValidateVagrantArgs checks that a vagrant command line was given.
func ValidateVagrantArgs(args []string) (field, message string) {
	if len(args) == 0 {
		return "cmd", "vagrant command is required"
	}
	return "", ""
}
