package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// ToolID identifies an external RNA analysis tool.
// The set is closed: every ID must have a descriptor and a payload builder.
type ToolID string

// Known analysis tools.
const (
	ToolBPFold        ToolID = "bpfold"
	ToolUFold         ToolID = "ufold"
	ToolMXFold2       ToolID = "mxfold2"
	ToolRNAformer     ToolID = "rnaformer"
	ToolRNAmigos2     ToolID = "rnamigos2"
	ToolReformer      ToolID = "reformer"
	ToolCoPRA         ToolID = "copra"
	ToolDeepRPI       ToolID = "deeprpi"
	ToolMol2Aptamer   ToolID = "mol2aptamer"
	ToolRNAFlow       ToolID = "rnaflow"
	ToolRNAFrameFlow  ToolID = "rnaframeflow"
	ToolRiboDiffusion ToolID = "ribodiffusion"
	ToolRNAMPNN       ToolID = "rnampnn"
)

// AllToolIDs returns every known tool in catalog order.
func AllToolIDs() []ToolID {
	return []ToolID{
		ToolBPFold, ToolUFold, ToolMXFold2, ToolRNAformer,
		ToolRNAmigos2, ToolReformer, ToolCoPRA, ToolDeepRPI,
		ToolMol2Aptamer, ToolRNAFlow, ToolRNAFrameFlow, ToolRiboDiffusion, ToolRNAMPNN,
	}
}

// IsValid returns true if the tool ID is known.
func (id ToolID) IsValid() bool {
	for _, known := range AllToolIDs() {
		if id == known {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (id ToolID) String() string {
	return string(id)
}

// ToolCategory groups tools by what they predict.
type ToolCategory string

// Tool categories.
const (
	CategoryStructurePrediction   ToolCategory = "structure_prediction"
	CategoryInteractionPrediction ToolCategory = "interaction_prediction"
	CategoryDeNovoDesign          ToolCategory = "de_novo_design"
)

// ToolDescriptor describes an external analysis tool.
type ToolDescriptor struct {
	ID             ToolID       `json:"id" yaml:"id"`
	DisplayName    string       `json:"name" yaml:"name"`
	Description    string       `json:"description" yaml:"description"`
	Endpoint       string       `json:"endpoint" yaml:"endpoint"`
	InputTypes     []string     `json:"input_types" yaml:"input_types"`
	OutputTypes    []string     `json:"output_types" yaml:"output_types"`
	RequiredInputs []string     `json:"required_inputs,omitempty" yaml:"required_inputs"`
	Category       ToolCategory `json:"category" yaml:"category"`
}

// Accepts reports whether the tool declares the given input type.
func (d ToolDescriptor) Accepts(inputType string) bool {
	for _, t := range d.InputTypes {
		if t == inputType {
			return true
		}
	}
	return false
}

// FileKind is the detected type of an uploaded file.
// Values match the input types tools declare.
type FileKind string

// File kinds.
const (
	FileKindFASTA   FileKind = "fasta"
	FileKindText    FileKind = "text"
	FileKindPDB     FileKind = "pdb"
	FileKindMMCIF   FileKind = "mmcif"
	FileKindSMILES  FileKind = "smiles"
	FileKindUnknown FileKind = ""
)

// UploadedFile is a file attached to a chat request.
type UploadedFile struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content"`
}

// Kind detects the file kind from the name, the declared type and the content.
func (f UploadedFile) Kind() FileKind {
	name := strings.ToLower(f.Name)
	switch {
	case strings.HasSuffix(name, ".fasta"), strings.HasSuffix(name, ".fa"), strings.HasSuffix(name, ".fna"):
		return FileKindFASTA
	case strings.HasSuffix(name, ".pdb"):
		return FileKindPDB
	case strings.HasSuffix(name, ".cif"), strings.HasSuffix(name, ".mmcif"):
		return FileKindMMCIF
	case strings.HasSuffix(name, ".smi"), strings.HasSuffix(name, ".smiles"), strings.Contains(name, "smiles"):
		return FileKindSMILES
	case strings.HasPrefix(strings.TrimSpace(f.Content), ">"):
		return FileKindFASTA
	case strings.HasSuffix(name, ".txt"), f.Type == "text/plain":
		return FileKindText
	default:
		return FileKindUnknown
	}
}

// ToolInvocationResult is the outcome of one tool call.
type ToolInvocationResult struct {
	Tool     ToolID          `json:"tool"`
	Name     string          `json:"name"`
	Category ToolCategory    `json:"category"`
	Success  bool            `json:"success"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Error    string          `json:"error,omitempty"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// ExecutionReport collects tool results in start order.
type ExecutionReport struct {
	Results []ToolInvocationResult `json:"results"`
}

// Succeeded returns the IDs of tools that completed successfully.
func (r *ExecutionReport) Succeeded() []ToolID {
	var ids []ToolID
	for _, res := range r.Results {
		if res.Success {
			ids = append(ids, res.Tool)
		}
	}
	return ids
}

// AnySucceeded reports whether at least one tool call succeeded.
func (r *ExecutionReport) AnySucceeded() bool {
	return len(r.Succeeded()) > 0
}

// Summary renders a one-line description such as
// "completed using: BPFold, UFold; failed: MXFold2".
func (r *ExecutionReport) Summary() string {
	if r == nil || len(r.Results) == 0 {
		return "no analysis tools were executed"
	}
	var ok, failed []string
	for _, res := range r.Results {
		name := res.Name
		if name == "" {
			name = string(res.Tool)
		}
		if res.Success {
			ok = append(ok, name)
		} else {
			failed = append(failed, name)
		}
	}
	var parts []string
	if len(ok) > 0 {
		parts = append(parts, "completed using: "+strings.Join(ok, ", "))
	}
	if len(failed) > 0 {
		parts = append(parts, "failed: "+strings.Join(failed, ", "))
	}
	return strings.Join(parts, "; ")
}

// ToolError is a failed tool call. Message is the text recorded in the
// execution report, such as "HTTP 500: <body>".
type ToolError struct {
	Tool    ToolID
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrToolInvocation.
func (e *ToolError) Unwrap() error {
	return ErrToolInvocation
}
