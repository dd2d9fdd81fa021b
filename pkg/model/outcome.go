package model

import "github.com/adslot/leasekeeper/pkg/errclass"

// Outcome is the terminal state every ledger-mutating flow ends in.
type Outcome string

const (
	OutcomeConfirmed Outcome = "Confirmed"
	// OutcomePartial means the transaction was submitted but its effect
	// was not observed within the polling bound.
	OutcomePartial Outcome = "PartiallyConfirmed"
	OutcomeFailed  Outcome = "Failed"
)

// Framing is how an outcome is presented to the user.
type Framing string

const (
	FramingSuccess Framing = "success"
	FramingInfo    Framing = "info"
	FramingError   Framing = "error"
)

// Frame maps an outcome and its error to a framing. A failure caused by
// the user declining to sign is informational, not an error.
func Frame(o Outcome, err error) Framing {
	switch o {
	case OutcomeConfirmed:
		return FramingSuccess
	case OutcomePartial:
		return FramingInfo
	}
	if err != nil && errclass.Informational(err) {
		return FramingInfo
	}
	return FramingError
}
