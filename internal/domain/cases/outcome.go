package cases

// Ignore reasons. They never surface as HTTP errors; callers get a
// success response either way, and the reason shows up in debug logs
// and the response body for operators.
const (
	ReasonCaseNotFound    = "case_not_found"
	ReasonMissingRole     = "missing_role"
	ReasonMissingReason   = "missing_reason"
	ReasonMissingMessage  = "missing_message"
	ReasonInvalidPriority = "invalid_priority"
	ReasonInvalidUrgency  = "invalid_urgency"
	ReasonInvalidAction   = "invalid_action"
	ReasonNotFound        = "record_not_found"
	ReasonNotPending      = "not_pending"
	ReasonNotSent         = "not_sent"
	ReasonAlreadyResolved = "already_resolved"
	ReasonAlreadyClosed   = "already_closed"
	ReasonNotCreator      = "not_creator"
	ReasonNotEligible     = "not_eligible"
)

// Outcome reports whether a workflow operation took effect. Invalid or
// ineligible attempts are deliberately silent at the API surface; the
// Outcome carries the distinction internally.
type Outcome struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

func Applied() Outcome {
	return Outcome{Applied: true}
}

func Ignored(reason string) Outcome {
	return Outcome{Reason: reason}
}
