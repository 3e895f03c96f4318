package submission

// DraftIdentity says whether the draft already exists on the server. It is
// either Unsaved or Saved; a Saved identity always carries a non-empty id.
type DraftIdentity interface {
	isDraftIdentity()
}

// Unsaved drafts are submitted with Create.
type Unsaved struct{}

// Saved drafts are submitted with Update against ID.
type Saved struct {
	ID string
}

func (Unsaved) isDraftIdentity() {}
func (Saved) isDraftIdentity()   {}

// applicationID returns the id of a Saved identity.
func applicationID(identity DraftIdentity) (string, bool) {
	saved, ok := identity.(Saved)
	if !ok {
		return "", false
	}
	return saved.ID, true
}

// Step names one section of the application form.
type Step string

const (
	StepCustomerInformation Step = "customer-information"
	StepLoanInformation     Step = "loan-information"
	StepGuarantor           Step = "guarantor"
	StepReview              Step = "review"
)

// Steps lists the form sections in display order.
var Steps = []Step{
	StepCustomerInformation,
	StepLoanInformation,
	StepGuarantor,
	StepReview,
}

// SubmitResult is returned by a successful SubmitStep.
type SubmitResult struct {
	ApplicationID string `json:"applicationId"`
	Created       bool   `json:"created"`
}
