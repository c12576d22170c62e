package models

// Outcome is the classification of one entity turn. It is exactly one of
// OutcomeOK, OutcomeConsentViolation or OutcomeSuspectedTampering.
type Outcome interface {
	outcome()
}

// OutcomeOK is a normal reply.
type OutcomeOK struct {
	Response       string
	Confidence     *float64
	GeneratedMedia *Media
}

// OutcomeConsentViolation records a strike; Guidance is shown to the user.
type OutcomeConsentViolation struct {
	Guidance string
}

// OutcomeSuspectedTampering means the backend believes the client or its
// state was manipulated.
type OutcomeSuspectedTampering struct{}

func (OutcomeOK) outcome()                 {}
func (OutcomeConsentViolation) outcome()   {}
func (OutcomeSuspectedTampering) outcome() {}
