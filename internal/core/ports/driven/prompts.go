package driven

// PromptStore resolves prompt templates by name. Templates carry {query}
// and {context} slots filled by prompts.Render.
type PromptStore interface {
	// Load returns the named template. Built-in names always resolve.
	Load(name string) (string, error)

	// Reload drops cached templates.
	Reload()
}

// Template names.
const (
	PromptClassify           = "classify"            // {query}
	PromptRNAExpert          = "rna_expert"          // {context}
	PromptGeneralBioinfo     = "general_bioinfo"     // {context}
	PromptOffTopic           = "off_topic"           // {query}
	PromptLiteratureRequired = "literature_required" // {query}
	PromptErrorMessage       = "error_message"
)
