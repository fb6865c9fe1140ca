package domain

import "fmt"

// transitions is the explicit lifecycle table. A document is created in
// StatusProcessing and reaches a resting state exactly once per pipeline
// run; afterwards only retry, duplicate resolution and merge move it.
var transitions = map[DocumentStatus]map[DocumentStatus]bool{
	// The self-edge lets a placeholder wedged in processing by a worker
	// crash be retried; batch persistence is per record, so such
	// orphans are reachable only through manual retry.
	StatusProcessing: {
		StatusProcessing:   true,
		StatusCompleted:    true,
		StatusReviewNeeded: true,
		StatusError:        true,
		StatusDuplicate:    true,
		StatusPrivate:      true,
	},
	// Ignore-duplicate and mark-as-original both land in review.
	StatusDuplicate: {
		StatusReviewNeeded: true,
	},
	// Explicit retry re-enters processing. Duplicates must be resolved
	// first, so there is no StatusDuplicate -> StatusProcessing edge.
	StatusCompleted: {
		StatusProcessing: true,
	},
	StatusReviewNeeded: {
		StatusProcessing: true,
	},
	StatusError: {
		StatusProcessing: true,
	},
	StatusPrivate: {
		StatusProcessing: true,
	},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to DocumentStatus) bool {
	return transitions[from][to]
}

// Transition moves the record to the given status, rejecting illegal
// edges. Leaving StatusDuplicate clears the duplicate linkage.
func (d *DocumentRecord) Transition(to DocumentStatus) error {
	if !CanTransition(d.Status, to) {
		return WrapError(ErrInvalidTransition, "transition",
			fmt.Errorf("%s -> %s", d.Status, to))
	}
	if d.Status == StatusDuplicate {
		d.DuplicateOfID = ""
		d.DuplicateReason = ""
		d.DuplicateConfidence = 0
	}
	d.Status = to
	return nil
}

// Mergeable reports whether a document may take part in a merge, on
// either side. Duplicate, error and review states must be resolved by
// the user before merging.
func (d *DocumentRecord) Mergeable() bool {
	switch d.Status {
	case StatusDuplicate, StatusError, StatusReviewNeeded:
		return false
	default:
		return true
	}
}
