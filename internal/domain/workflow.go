package domain

// WorkflowState is a node in a workflow's state graph.
type WorkflowState struct {
	ID         string
	WorkflowID string
	Name       string
	IsInitial  bool
	IsFinal    bool
}

// WorkflowTransition is the static definition of a permitted edge between two
// states. SLADurationHours of zero means the transition carries no SLA.
type WorkflowTransition struct {
	ID               string
	WorkflowID       string
	SourceStateID    string
	TargetStateID    string
	EventName        string
	SLADurationHours int
}

// HasSLA reports whether the transition defines an SLA deadline.
func (t WorkflowTransition) HasSLA() bool {
	return t.SLADurationHours > 0
}
