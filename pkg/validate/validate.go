// Package validate checks decoded enrichment responses before they are
// trusted: structural completeness, semantic plausibility and wire
// serializability. It also normalizes responses via Clean. Generated text is
// treated as hostile input until all three check categories pass.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Record is one acronym enrichment result as decoded from the remote
// response. A Record persisted by the store is immutable.
type Record struct {
	Acronym      string   `json:"acronym"`
	FullName     string   `json:"full_name"`
	Description  string   `json:"description"`
	Context      string   `json:"context"`
	RelatedTerms []string `json:"related_terms"`
	Industry     string   `json:"industry"`

	// Processing metadata, attached by the orchestrator.
	ProcessedAt time.Time `json:"processed_at,omitzero"`
	KeyHint     string    `json:"api_key,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
}

// Report groups validation failures by category. An empty report means the
// record passed every check.
type Report struct {
	Structure     []string `json:"structure,omitempty"`
	Content       []string `json:"content,omitempty"`
	Serialization []string `json:"serialization,omitempty"`
}

// Valid reports whether every category is clean.
func (r Report) Valid() bool {
	return len(r.Structure) == 0 && len(r.Content) == 0 && len(r.Serialization) == 0
}

// Categories returns the names of categories that recorded failures.
func (r Report) Categories() []string {
	var out []string
	if len(r.Structure) > 0 {
		out = append(out, "structure")
	}
	if len(r.Content) > 0 {
		out = append(out, "content")
	}
	if len(r.Serialization) > 0 {
		out = append(out, "serialization")
	}
	return out
}

// Summary flattens the report into one line for logs and error records.
func (r Report) Summary() string {
	var parts []string
	if len(r.Structure) > 0 {
		parts = append(parts, "structure: "+strings.Join(r.Structure, "; "))
	}
	if len(r.Content) > 0 {
		parts = append(parts, "content: "+strings.Join(r.Content, "; "))
	}
	if len(r.Serialization) > 0 {
		parts = append(parts, "serialization: "+strings.Join(r.Serialization, "; "))
	}
	return strings.Join(parts, " | ")
}

// placeholderPatterns match leftover template markup and filler words that
// indicate the model did not produce real content.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`<.*?>`),
	regexp.MustCompile(`\{.*?\}`),
	regexp.MustCompile(`(?i)placeholder`),
	regexp.MustCompile(`(?i)example`),
	regexp.MustCompile(`(?i)sample`),
}

// Validator checks Records against configurable minimums.
type Validator struct {
	// MinDescriptionLength is the minimum trimmed length of the description.
	MinDescriptionLength int

	// MinRelatedTerms is the minimum cardinality of the related-terms list.
	MinRelatedTerms int
}

// NewValidator creates a validator. A non-positive description minimum
// falls back to 20 characters. A negative related-terms minimum falls back
// to 1 term, while zero disables the cardinality check.
func NewValidator(minDescriptionLength, minRelatedTerms int) *Validator {
	if minDescriptionLength <= 0 {
		minDescriptionLength = 20
	}
	if minRelatedTerms < 0 {
		minRelatedTerms = 1
	}
	return &Validator{
		MinDescriptionLength: minDescriptionLength,
		MinRelatedTerms:      minRelatedTerms,
	}
}

// Validate runs all three check categories independently and returns the
// combined report.
func (v *Validator) Validate(rec Record) Report {
	return Report{
		Structure:     v.checkStructure(rec),
		Content:       v.checkContent(rec),
		Serialization: v.checkSerialization(rec),
	}
}

// checkStructure verifies required fields are present, non-empty and meet
// the configured minimums.
func (v *Validator) checkStructure(rec Record) []string {
	var errs []string

	required := map[string]string{
		"acronym":     rec.Acronym,
		"full_name":   rec.FullName,
		"description": rec.Description,
		"context":     rec.Context,
		"industry":    rec.Industry,
	}
	for _, field := range []string{"acronym", "full_name", "description", "context", "industry"} {
		if strings.TrimSpace(required[field]) == "" {
			errs = append(errs, fmt.Sprintf("field %q is empty", field))
		}
	}

	if len(rec.RelatedTerms) < v.MinRelatedTerms {
		errs = append(errs, fmt.Sprintf("field \"related_terms\" needs at least %d items (got %d)",
			v.MinRelatedTerms, len(rec.RelatedTerms)))
	}

	if desc := strings.TrimSpace(rec.Description); desc != "" && len(desc) < v.MinDescriptionLength {
		errs = append(errs, fmt.Sprintf("description too short (minimum %d characters)",
			v.MinDescriptionLength))
	}

	return errs
}

// checkContent verifies semantic plausibility: the expansion must actually
// contain the acronym (or vice versa), the description must not carry
// placeholder markup, and the related terms must be distinct.
func (v *Validator) checkContent(rec Record) []string {
	var errs []string

	acronym := strings.ToUpper(strings.TrimSpace(rec.Acronym))
	fullName := strings.ToUpper(strings.TrimSpace(rec.FullName))
	if acronym != "" && fullName != "" && !expansionMatches(acronym, fullName) {
		errs = append(errs, fmt.Sprintf("full name %q does not match acronym %q",
			rec.FullName, rec.Acronym))
	}

	for _, pattern := range placeholderPatterns {
		if pattern.MatchString(rec.Description) {
			errs = append(errs, fmt.Sprintf("description contains placeholder text matching %s",
				pattern.String()))
		}
	}

	seen := make(map[string]bool)
	var duplicates []string
	for _, term := range rec.RelatedTerms {
		normalized := strings.ToLower(strings.TrimSpace(term))
		if seen[normalized] {
			duplicates = append(duplicates, term)
		}
		seen[normalized] = true
	}
	if len(duplicates) > 0 {
		errs = append(errs, "duplicate related terms: "+strings.Join(duplicates, ", "))
	}

	return errs
}

// expansionMatches reports whether fullName plausibly expands acronym:
// substring containment in either direction, or the acronym appearing in
// order among the initials of the expansion words (connector words like
// "and" or "of" contribute initials the acronym may skip). Both inputs are
// upper-cased. This catches wrong-acronym hallucinations like "NASA"
// expanded to "Central Processing Unit".
func expansionMatches(acronym, fullName string) bool {
	if strings.Contains(fullName, acronym) || strings.Contains(acronym, fullName) {
		return true
	}

	var initials []byte
	for _, word := range strings.FieldsFunc(fullName, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/'
	}) {
		initials = append(initials, word[0])
	}

	// Subsequence match: every acronym letter in order among the initials.
	i := 0
	for _, b := range initials {
		if i < len(acronym) && acronym[i] == b {
			i++
		}
	}
	return i == len(acronym)
}

// checkSerialization verifies the record survives a wire round-trip.
func (v *Validator) checkSerialization(rec Record) []string {
	data, err := json.Marshal(rec)
	if err != nil {
		return []string{fmt.Sprintf("marshal: %v", err)}
	}
	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		return []string{fmt.Sprintf("unmarshal: %v", err)}
	}
	return nil
}

// Clean normalizes a record: trims string fields, deduplicates related terms
// case-insensitively preserving first-seen order, and drops empty entries.
// Clean is idempotent and never invents content.
func Clean(rec Record) Record {
	cleaned := rec
	cleaned.Acronym = strings.TrimSpace(rec.Acronym)
	cleaned.FullName = strings.TrimSpace(rec.FullName)
	cleaned.Description = strings.TrimSpace(rec.Description)
	cleaned.Context = strings.TrimSpace(rec.Context)
	cleaned.Industry = strings.TrimSpace(rec.Industry)

	seen := make(map[string]bool)
	terms := make([]string, 0, len(rec.RelatedTerms))
	for _, term := range rec.RelatedTerms {
		trimmed := strings.TrimSpace(term)
		if trimmed == "" {
			continue
		}
		normalized := strings.ToLower(trimmed)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		terms = append(terms, trimmed)
	}
	cleaned.RelatedTerms = terms

	return cleaned
}
