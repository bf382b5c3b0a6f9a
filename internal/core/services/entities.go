package services

import (
	"regexp"
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// Sequence thresholds. Shorter runs are treated as ordinary words.
const (
	MinRNASequenceLength     = 10
	MinProteinSequenceLength = 20
)

// Defaults used when a request names no RBP or cell line.
const (
	DefaultRBP      = "U2AF2"
	DefaultCellLine = "HepG2"
)

var (
	rnaRunPattern     = regexp.MustCompile(`(?i)\b[ACGU]{10,}\b`)
	proteinRunPattern = regexp.MustCompile(`(?i)\b[ACDEFGHIKLMNPQRSTVWY]{20,}\b`)
	rbpPattern        = regexp.MustCompile(`(?i)\bRBP\s*[:=]\s*([A-Za-z0-9][A-Za-z0-9-]*)`)
	cellLinePattern   = regexp.MustCompile(`(?i)\bcell[ -]line\s*[:=]\s*([A-Za-z0-9][A-Za-z0-9-]*)`)
)

// Entities are the biological identifiers found in a request.
type Entities struct {
	// RNASequences come from uploaded files first, then the message text.
	RNASequences []string

	// ProteinSequences come from the message text.
	ProteinSequences []string

	// SMILES come from uploaded SMILES files.
	SMILES []string

	// RBP is the named RNA-binding protein, or DefaultRBP.
	RBP string

	// CellLine is the named cell line, or DefaultCellLine.
	CellLine string
}

// ExtractEntities finds sequences and named entities in text and files.
// Sequences are uppercased and deduplicated in first-seen order.
func ExtractEntities(text string, files []domain.UploadedFile) Entities {
	ent := Entities{RBP: DefaultRBP, CellLine: DefaultCellLine}

	var rna []string
	for _, f := range files {
		switch f.Kind() {
		case domain.FileKindFASTA:
			rna = append(rna, ParseFASTA(f.Content)...)
		case domain.FileKindText:
			if seq := nucleotidesOnly(f.Content); len(seq) >= MinRNASequenceLength {
				rna = append(rna, seq)
			}
		case domain.FileKindSMILES:
			ent.SMILES = append(ent.SMILES, parseSMILES(f.Content)...)
		}
	}
	rna = append(rna, ExtractRNASequences(text)...)
	ent.RNASequences = dedupe(rna)
	ent.ProteinSequences = ExtractProteinSequences(text)
	ent.SMILES = dedupe(ent.SMILES)

	if m := rbpPattern.FindStringSubmatch(text); m != nil {
		ent.RBP = strings.ToUpper(m[1])
	}
	if m := cellLinePattern.FindStringSubmatch(text); m != nil {
		ent.CellLine = m[1]
	}
	return ent
}

// ExtractRNASequences returns runs of at least MinRNASequenceLength
// nucleotides over the AUCG alphabet.
func ExtractRNASequences(text string) []string {
	var out []string
	for _, m := range rnaRunPattern.FindAllString(text, -1) {
		out = append(out, strings.ToUpper(m))
	}
	return dedupe(out)
}

// ExtractProteinSequences returns runs of at least MinProteinSequenceLength
// amino acids that are not pure nucleotide runs.
func ExtractProteinSequences(text string) []string {
	var out []string
	for _, m := range proteinRunPattern.FindAllString(text, -1) {
		seq := strings.ToUpper(m)
		if isNucleotides(seq) {
			continue
		}
		out = append(out, seq)
	}
	return dedupe(out)
}

// ParseFASTA returns the sequence of every record in content.
// Content without a header line is treated as one record.
func ParseFASTA(content string) []string {
	var (
		seqs    []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			seqs = append(seqs, strings.ToUpper(current.String()))
			current.Reset()
		}
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "", strings.HasPrefix(line, ";"):
		case strings.HasPrefix(line, ">"):
			flush()
		default:
			current.WriteString(strings.Join(strings.Fields(line), ""))
		}
	}
	flush()
	return seqs
}

func parseSMILES(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		out = append(out, fields[0])
	}
	return out
}

// nucleotidesOnly keeps the ACGTU letters of s, uppercased.
func nucleotidesOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch r {
		case 'A', 'C', 'G', 'T', 'U':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isNucleotides(s string) bool {
	return nucleotidesOnly(s) == s
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
