package intake

// stepOrder lists the form steps in the order they are walked.
var stepOrder = []Step{
	StepSelectingType,
	StepEnteringSubject,
	StepEnteringDescription,
	StepEnteringExtra,
	StepEnteringDeadline,
	StepEnteringBudget,
	StepConfirming,
}

// NextStep returns the step that follows s, or StepNone when s is the last
// form step or unknown.
func NextStep(s Step) Step {
	for i, step := range stepOrder {
		if step == s {
			if i+1 < len(stepOrder) {
				return stepOrder[i+1]
			}
			return StepNone
		}
	}

	return StepNone
}

// IsFormStep reports whether s is one of the walkable form steps.
func IsFormStep(s Step) bool {
	for _, step := range stepOrder {
		if step == s {
			return true
		}
	}

	return false
}
