// Package validation provides pure validation functions for command inputs.
//
// This package contains the functional core logic for validating deployment
// options before any file or process is touched. All functions are pure
// (no I/O, no side effects).
//
// # Functions
//
//   - ValidateApplyOptions: Validate the options of a deployment run
//   - ValidateVagrantArgs: Validate the argument list passed to vagrant
//
// # Usage
//
// The engine validates options before preparing the role directory:
//
//	if field, msg := validation.ValidateApplyOptions(opts); field != "" {
//	    // Reject the run with msg
//	}
package validation
