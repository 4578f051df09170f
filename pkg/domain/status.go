package domain

import dErrors "gumball/pkg/domain-errors"

// TreeStatus is the lifecycle status of a machine record.
// Invariant: the value must be one of the supported statuses.
type TreeStatus uint8

const (
	// TreeStatusInactive rejects every mint.
	TreeStatusInactive TreeStatus = iota
	// TreeStatusActive allows gated mints (allow-list quota or pass-token burn).
	TreeStatusActive
	// TreeStatusPublic allows ungated mints.
	TreeStatusPublic
	// TreeStatusFinished marks an exhausted record. It is set by the mint
	// coordinator only; the store reclaims the record when it sees it.
	TreeStatusFinished
)

var statusNames = map[TreeStatus]string{
	TreeStatusInactive: "inactive",
	TreeStatusActive:   "active",
	TreeStatusPublic:   "public",
	TreeStatusFinished: "finished",
}

// ParseTreeStatus constructs a TreeStatus from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseTreeStatus(s string) (TreeStatus, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid status")
}

// IsValid checks if the status is one of the supported enum values.
func (s TreeStatus) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// String returns the string representation of the status.
func (s TreeStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}
