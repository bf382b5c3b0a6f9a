package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// Ensure ToolRegistry implements the interface.
var _ driving.ToolCatalog = (*ToolRegistry)(nil)

// Payload defaults for tools whose inputs the request did not supply.
const (
	DefaultProteinSequence = "MKTVRQERLKSIVRILERSKEPVSGAQLAEELSVSRQVIVQDIAYLRSLGYNIVATPRGYVLAGG"
	DefaultLigandSMILES    = "C1=CC=CC=C1"
)

// PayloadBuilder builds the request body of one tool.
type PayloadBuilder func(ent Entities, files []domain.UploadedFile) map[string]any

// Requirement is a precondition of a keyword rule.
type Requirement string

// Rule requirements.
const (
	NeedNothing Requirement = ""
	NeedRNA     Requirement = "rna_sequence"
	NeedMMCIF   Requirement = "mmcif"
	NeedPDB     Requirement = "pdb"
	NeedSMILES  Requirement = "smiles"
)

// ToolRule selects tools when the request text mentions one of Trigger,
// and one of Also when Also is set, and Needs is met.
type ToolRule struct {
	Trigger []string
	Also    []string
	Needs   Requirement
	Tools   []domain.ToolID
	Reason  string
}

var (
	structureTerms   = []string{"structure", "fold", "secondary", "base pair", "helix"}
	interactionTerms = []string{"interaction", "binding", "protein", "ligand", "affinity"}
	designTerms      = []string{"design", "generate", "create", "aptamer", "backbone"}
)

// DefaultToolRules returns the keyword rules table. Keywords match as
// lower-case substrings of the request.
func DefaultToolRules() []ToolRule {
	return []ToolRule{
		{
			Trigger: structureTerms,
			Needs:   NeedRNA,
			Tools:   []domain.ToolID{domain.ToolBPFold, domain.ToolUFold, domain.ToolMXFold2, domain.ToolRNAformer},
			Reason:  "RNA sequences detected for structure prediction",
		},
		{
			Trigger: interactionTerms,
			Needs:   NeedMMCIF,
			Tools:   []domain.ToolID{domain.ToolRNAmigos2},
			Reason:  "mmCIF structure file detected for ligand interaction analysis",
		},
		{
			Trigger: interactionTerms,
			Needs:   NeedRNA,
			Tools:   []domain.ToolID{domain.ToolCoPRA, domain.ToolDeepRPI},
			Reason:  "sequences available for protein-RNA interaction analysis",
		},
		{
			Trigger: interactionTerms,
			Also:    []string{"rbp", "rna-binding protein", "u2af2", "hepg2", "cell line", "specific protein"},
			Needs:   NeedRNA,
			Tools:   []domain.ToolID{domain.ToolReformer},
			Reason:  "RBP and cell line information detected for Reformer analysis",
		},
		{
			Trigger: designTerms,
			Needs:   NeedSMILES,
			Tools:   []domain.ToolID{domain.ToolMol2Aptamer},
			Reason:  "SMILES file detected for aptamer generation",
		},
		{
			Trigger: designTerms,
			Needs:   NeedPDB,
			Tools:   []domain.ToolID{domain.ToolRiboDiffusion, domain.ToolRNAMPNN},
			Reason:  "PDB structure file detected for RNA design",
		},
		{
			Trigger: designTerms,
			Also:    []string{"protein", "conditioned"},
			Tools:   []domain.ToolID{domain.ToolRNAFlow},
			Reason:  "protein-conditioned RNA design requested",
		},
		{
			Trigger: designTerms,
			Also:    []string{"3d", "backbone", "structure"},
			Tools:   []domain.ToolID{domain.ToolRNAFrameFlow},
			Reason:  "3D structure design requested",
		},
	}
}

// fallbackTools run when no rule selected anything but sequences are present.
var fallbackTools = []domain.ToolID{domain.ToolBPFold, domain.ToolUFold}

// ToolPlan is the ordered set of tools chosen for one request.
type ToolPlan struct {
	Tools    []domain.ToolID
	Reasons  []string
	Entities Entities
}

// Empty reports whether the plan selects no tools.
func (p ToolPlan) Empty() bool {
	return len(p.Tools) == 0
}

// Reasoning joins the plan reasons.
func (p ToolPlan) Reasoning() string {
	if len(p.Reasons) == 0 {
		return "no specific analysis identified"
	}
	return strings.Join(p.Reasons, "; ")
}

// ToolRegistry maps every known tool to its descriptor and payload builder.
type ToolRegistry struct {
	descriptors map[domain.ToolID]domain.ToolDescriptor
	builders    map[domain.ToolID]PayloadBuilder
	rules       []ToolRule
}

// ToolRegistryOption configures a ToolRegistry.
type ToolRegistryOption func(*ToolRegistry)

// WithToolRules replaces the keyword rules table.
func WithToolRules(rules []ToolRule) ToolRegistryOption {
	return func(r *ToolRegistry) { r.rules = rules }
}

// NewToolRegistry loads descriptors from source and checks that every
// known tool has a descriptor and a payload builder.
func NewToolRegistry(source driven.ToolCatalogSource, opts ...ToolRegistryOption) (*ToolRegistry, error) {
	descs, err := source.Load()
	if err != nil {
		return nil, fmt.Errorf("load tool catalog: %w", err)
	}

	r := &ToolRegistry{
		descriptors: make(map[domain.ToolID]domain.ToolDescriptor, len(descs)),
		builders:    payloadBuilders(),
		rules:       DefaultToolRules(),
	}
	for _, d := range descs {
		r.descriptors[d.ID] = d
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, id := range domain.AllToolIDs() {
		if _, ok := r.descriptors[id]; !ok {
			return nil, fmt.Errorf("%w: tool catalog has no entry for %q", domain.ErrInvalidInput, id)
		}
		if _, ok := r.builders[id]; !ok {
			return nil, fmt.Errorf("%w: no payload builder for tool %q", domain.ErrInvalidInput, id)
		}
	}
	return r, nil
}

// List returns every tool in catalog order.
func (r *ToolRegistry) List() []domain.ToolDescriptor {
	ids := domain.AllToolIDs()
	out := make([]domain.ToolDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.descriptors[id])
	}
	return out
}

// Get returns the descriptor of one tool.
func (r *ToolRegistry) Get(id domain.ToolID) (domain.ToolDescriptor, bool) {
	d, ok := r.descriptors[id]
	return d, ok
}

// Payload builds the request body for a tool.
func (r *ToolRegistry) Payload(id domain.ToolID, ent Entities, files []domain.UploadedFile) map[string]any {
	return r.builders[id](ent, files)
}

// Plan selects the tools for a request. Uploaded files select every tool
// declaring their kind as input, the keyword rules add tools for what the
// text asks, and RNA sequences alone fall back to two folders.
func (r *ToolRegistry) Plan(text string, files []domain.UploadedFile) ToolPlan {
	plan := ToolPlan{Entities: ExtractEntities(text, files)}
	seen := make(map[domain.ToolID]bool)
	add := func(id domain.ToolID, reason string) {
		if seen[id] || !r.satisfied(r.descriptors[id], plan.Entities, files) {
			return
		}
		seen[id] = true
		plan.Tools = append(plan.Tools, id)
		if reason != "" && !slices.Contains(plan.Reasons, reason) {
			plan.Reasons = append(plan.Reasons, reason)
		}
	}

	// 1. File-type rule
	for _, f := range files {
		kind := f.Kind()
		if kind == domain.FileKindUnknown {
			continue
		}
		for _, id := range domain.AllToolIDs() {
			if r.descriptors[id].Accepts(string(kind)) {
				add(id, fmt.Sprintf("%s file %s uploaded", kind, f.Name))
			}
		}
	}

	// 2. Keyword rules
	lower := strings.ToLower(text)
	for _, rule := range r.rules {
		if !containsAny(lower, rule.Trigger) {
			continue
		}
		if len(rule.Also) > 0 && !containsAny(lower, rule.Also) {
			continue
		}
		if !needMet(rule.Needs, plan.Entities, files) {
			continue
		}
		for _, id := range rule.Tools {
			add(id, rule.Reason)
		}
	}

	// 3. Fallback
	if plan.Empty() && len(plan.Entities.RNASequences) > 0 {
		for _, id := range fallbackTools {
			add(id, "general RNA analysis with available sequences")
		}
	}

	logger.Debug("Tool plan: %v (%s)", plan.Tools, plan.Reasoning())
	return plan
}

// satisfied reports whether the request supplies every required input of d.
func (r *ToolRegistry) satisfied(d domain.ToolDescriptor, ent Entities, files []domain.UploadedFile) bool {
	for _, req := range d.RequiredInputs {
		if !needMet(Requirement(req), ent, files) {
			return false
		}
	}
	return true
}

func needMet(need Requirement, ent Entities, files []domain.UploadedFile) bool {
	switch need {
	case NeedNothing:
		return true
	case NeedRNA:
		return len(ent.RNASequences) > 0
	case "protein_sequence":
		return len(ent.ProteinSequences) > 0
	case NeedMMCIF, NeedPDB, NeedSMILES, Requirement(domain.FileKindFASTA), Requirement(domain.FileKindText):
		return firstFile(files, domain.FileKind(need)) != nil
	default:
		return true
	}
}

// ToolOrchestrator executes tool plans.
type ToolOrchestrator struct {
	registry *ToolRegistry
	invoker  driven.ToolInvoker
	now      func() time.Time
}

// NewToolOrchestrator creates an orchestrator.
func NewToolOrchestrator(registry *ToolRegistry, invoker driven.ToolInvoker) *ToolOrchestrator {
	return &ToolOrchestrator{registry: registry, invoker: invoker, now: time.Now}
}

// Registry returns the tool registry the orchestrator plans with.
func (o *ToolOrchestrator) Registry() *ToolRegistry {
	return o.registry
}

// Plan delegates to the registry.
func (o *ToolOrchestrator) Plan(text string, files []domain.UploadedFile) ToolPlan {
	return o.registry.Plan(text, files)
}

// Execute invokes the planned tools one after another. A failed tool is
// recorded in the report and never stops the others. onStatus, when set,
// receives a tool_status event as each tool starts and finishes.
// Cancelling ctx stops before the next tool.
func (o *ToolOrchestrator) Execute(
	ctx context.Context,
	plan ToolPlan,
	files []domain.UploadedFile,
	onStatus func(domain.StreamEvent),
) *domain.ExecutionReport {
	report := &domain.ExecutionReport{}
	emit := func(id domain.ToolID, status domain.ToolStatus, msg string) {
		if onStatus != nil {
			onStatus(domain.StreamEvent{Type: domain.EventToolStatus, Tool: id, Status: status, Message: msg})
		}
	}

	for _, id := range plan.Tools {
		if ctx.Err() != nil {
			logger.Debug("Tool execution stopped: %v", ctx.Err())
			break
		}
		desc, ok := o.registry.Get(id)
		if !ok {
			continue
		}

		emit(id, domain.ToolStarted, fmt.Sprintf("Running %s...", desc.DisplayName))
		start := o.now()
		payload, err := o.invoker.Invoke(ctx, desc, o.registry.Payload(id, plan.Entities, files))
		result := domain.ToolInvocationResult{
			Tool:     id,
			Name:     desc.DisplayName,
			Category: desc.Category,
			Elapsed:  o.now().Sub(start),
		}

		if err != nil {
			result.Error = toolErrorMessage(err)
			logger.Warn("Tool %s failed: %v", id, err)
			emit(id, domain.ToolFailed, fmt.Sprintf("%s failed: %s", desc.DisplayName, result.Error))
		} else {
			result.Success = true
			result.Payload = payload
			logger.Info("Tool %s completed in %s", id, result.Elapsed.Round(time.Millisecond))
			emit(id, domain.ToolCompleted, fmt.Sprintf("%s completed", desc.DisplayName))
		}
		report.Results = append(report.Results, result)
	}
	return report
}

// toolErrorMessage returns the message recorded for a failed call.
func toolErrorMessage(err error) string {
	var te *domain.ToolError
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}

// payloadBuilders returns the request body builder of every tool.
func payloadBuilders() map[domain.ToolID]PayloadBuilder {
	folder := func(outputFormat string) PayloadBuilder {
		return func(ent Entities, _ []domain.UploadedFile) map[string]any {
			seqs := ent.RNASequences
			if seqs == nil {
				seqs = []string{}
			}
			p := map[string]any{"sequences": seqs, "input_type": "text"}
			if outputFormat != "" {
				p["output_format"] = outputFormat
			}
			return p
		}
	}
	pair := func(ent Entities, _ []domain.UploadedFile) map[string]any {
		return map[string]any{
			"rna_sequence":     firstOr(ent.RNASequences, ""),
			"protein_sequence": firstOr(ent.ProteinSequences, DefaultProteinSequence),
		}
	}
	fromPDB := func(_ Entities, files []domain.UploadedFile) map[string]any {
		return map[string]any{"pdb_content": fileContent(files, domain.FileKindPDB)}
	}

	return map[domain.ToolID]PayloadBuilder{
		domain.ToolBPFold:    folder("dbn"),
		domain.ToolUFold:     folder(""),
		domain.ToolMXFold2:   folder(""),
		domain.ToolRNAformer: folder(""),
		domain.ToolRNAmigos2: func(ent Entities, files []domain.UploadedFile) map[string]any {
			ligands := ent.SMILES
			if len(ligands) == 0 {
				ligands = []string{DefaultLigandSMILES}
			}
			return map[string]any{
				"structure_file": fileContent(files, domain.FileKindMMCIF),
				"ligands":        ligands,
			}
		},
		domain.ToolReformer: func(ent Entities, _ []domain.UploadedFile) map[string]any {
			return map[string]any{
				"sequence":  strings.ReplaceAll(firstOr(ent.RNASequences, ""), "U", "T"),
				"rbp_name":  ent.RBP,
				"cell_line": ent.CellLine,
			}
		},
		domain.ToolCoPRA:   pair,
		domain.ToolDeepRPI: pair,
		domain.ToolMol2Aptamer: func(ent Entities, files []domain.UploadedFile) map[string]any {
			smiles := firstOr(ent.SMILES, "")
			if smiles == "" {
				smiles = strings.TrimSpace(fileContent(files, domain.FileKindSMILES))
			}
			return map[string]any{"smiles": smiles, "num_sequences": 5}
		},
		domain.ToolRNAFlow: func(ent Entities, _ []domain.UploadedFile) map[string]any {
			return map[string]any{
				"protein_sequence": firstOr(ent.ProteinSequences, DefaultProteinSequence),
				"rna_length":       50,
			}
		},
		domain.ToolRNAFrameFlow: func(Entities, []domain.UploadedFile) map[string]any {
			return map[string]any{"structure_length": 30, "num_structures": 3}
		},
		domain.ToolRiboDiffusion: fromPDB,
		domain.ToolRNAMPNN:       fromPDB,
	}
}

func firstFile(files []domain.UploadedFile, kind domain.FileKind) *domain.UploadedFile {
	for i := range files {
		if files[i].Kind() == kind {
			return &files[i]
		}
	}
	return nil
}

func fileContent(files []domain.UploadedFile, kind domain.FileKind) string {
	if f := firstFile(files, kind); f != nil {
		return f.Content
	}
	return ""
}

func firstOr(items []string, fallback string) string {
	if len(items) > 0 {
		return items[0]
	}
	return fallback
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
