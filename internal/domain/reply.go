package domain

// StructuredReply is the four-field response contract returned for every
// reflection request. All four fields are always populated, even when the
// generation backend fails or ignores formatting instructions.
type StructuredReply struct {
	Insight  string
	Thread   string
	Clarity  string
	Question string
}

// Complete reports whether every field carries text.
func (r StructuredReply) Complete() bool {
	return r.Insight != "" && r.Thread != "" && r.Clarity != "" && r.Question != ""
}
