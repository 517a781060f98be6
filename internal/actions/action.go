package actions

// Operation is the coarse, caller-facing unit of requested work, as
// produced by the intent/action-generation layer. Dependencies are keyed
// by operation TYPE, not instance id; the sequencer resolves them before
// anything becomes a schedulable task.
type Operation struct {
	Type              string         `json:"type"`
	Payload           map[string]any `json:"payload"`
	DependsOn         []string       `json:"depends_on,omitempty"` // Operation types
	AutoExecute       bool           `json:"auto_execute"`
	RequiresUserInput bool           `json:"requires_user_input"`
	Priority          string         `json:"priority,omitempty"` // high | normal | low
}

// Well-known operation types. The sequencer has type-specific rules for
// some of these; unknown types follow the generic auto-execute rule.
const (
	OpGenerateContent   = "generate_content"
	OpGenerateStructure = "generate_structure"
	OpImproveContent    = "improve_content"
	OpSelectSection     = "select_section"
)

// isNavigation reports whether the operation is carried out by the
// caller's UI rather than by a worker. Navigation operations complete
// immediately from the sequencer's point of view and are forwarded back
// to the caller for actual execution.
func (op Operation) isNavigation() bool {
	return op.Type == OpSelectSection
}
