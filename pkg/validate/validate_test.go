package validate

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() Record {
	return Record{
		Acronym:      "NASA",
		FullName:     "National Aeronautics and Space Administration",
		Description:  "The United States government agency responsible for the civil space program, aeronautics research and space research.",
		Context:      "Aerospace, government and scientific research",
		RelatedTerms: []string{"ESA", "spaceflight", "aeronautics"},
		Industry:     "Aerospace",
	}
}

func TestValidate_ValidRecord(t *testing.T) {
	v := NewValidator(20, 1)

	report := v.Validate(validRecord())
	assert.True(t, report.Valid(), "report: %s", report.Summary())
	assert.Empty(t, report.Categories())
}

func TestNewValidator_Minimums(t *testing.T) {
	v := NewValidator(0, -1)
	assert.Equal(t, 20, v.MinDescriptionLength)
	assert.Equal(t, 1, v.MinRelatedTerms)

	v = NewValidator(20, 0)
	assert.Equal(t, 0, v.MinRelatedTerms, "zero keeps the cardinality check disabled")

	rec := validRecord()
	rec.RelatedTerms = nil
	report := v.Validate(rec)
	assert.True(t, report.Valid(),
		"empty related terms must pass when no minimum is set: %s", report.Summary())
}

func TestValidate_StructuralErrors(t *testing.T) {
	v := NewValidator(20, 1)

	tests := []struct {
		name   string
		mutate func(*Record)
		substr string
	}{
		{
			name:   "missing full name",
			mutate: func(r *Record) { r.FullName = "" },
			substr: `"full_name"`,
		},
		{
			name:   "whitespace-only industry",
			mutate: func(r *Record) { r.Industry = "   " },
			substr: `"industry"`,
		},
		{
			name:   "missing related terms",
			mutate: func(r *Record) { r.RelatedTerms = nil },
			substr: `"related_terms"`,
		},
		{
			name:   "short description",
			mutate: func(r *Record) { r.Description = "Too short" },
			substr: "too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			report := v.Validate(rec)
			require.False(t, report.Valid())
			assert.Contains(t, report.Categories(), "structure")

			found := false
			for _, e := range report.Structure {
				if strings.Contains(strings.ToLower(e), strings.ToLower(tt.substr)) {
					found = true
				}
			}
			assert.True(t, found, "structure errors %v should mention %q", report.Structure, tt.substr)
		})
	}
}

func TestValidate_MissingRelatedTermsScenario(t *testing.T) {
	// A response missing related_terms fails structure citing that field;
	// cleaning yields an empty list and validation still fails while the
	// minimum cardinality is positive.
	v := NewValidator(20, 1)

	rec := validRecord()
	rec.RelatedTerms = nil

	report := v.Validate(rec)
	require.False(t, report.Valid())
	assert.Contains(t, report.Structure[0], "related_terms")

	cleaned := Clean(rec)
	assert.NotNil(t, cleaned.RelatedTerms)
	assert.Empty(t, cleaned.RelatedTerms)
	assert.False(t, v.Validate(cleaned).Valid())

	// With no minimum the cleaned record passes.
	relaxed := NewValidator(20, 0)
	assert.True(t, relaxed.Validate(cleaned).Valid())
}

func TestValidate_ContentMismatch(t *testing.T) {
	v := NewValidator(20, 1)

	tests := []struct {
		name     string
		acronym  string
		fullName string
		valid    bool
	}{
		{
			name:     "wrong expansion entirely",
			acronym:  "NASA",
			fullName: "Central Processing Unit",
			valid:    false,
		},
		{
			name:     "initialism with connector words",
			acronym:  "NASA",
			fullName: "National Aeronautics and Space Administration",
			valid:    true,
		},
		{
			name:     "direct substring",
			acronym:  "SQL",
			fullName: "SQL Server Integration Services",
			valid:    true,
		},
		{
			name:     "case-insensitive substring",
			acronym:  "radar",
			fullName: "RADAR Detection System",
			valid:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			rec.Acronym = tt.acronym
			rec.FullName = tt.fullName

			report := v.Validate(rec)
			if tt.valid {
				assert.Empty(t, report.Content, "unexpected content errors: %v", report.Content)
			} else {
				assert.NotEmpty(t, report.Content)
			}
		})
	}
}

func TestValidate_PlaceholderDetection(t *testing.T) {
	v := NewValidator(20, 1)

	tests := []struct {
		name        string
		description string
	}{
		{name: "bracket token", description: "The agency handles [insert details here] and space research programs."},
		{name: "angle token", description: "An agency for <topic> research with a large annual budget."},
		{name: "brace token", description: "Responsible for {description} across the United States programs."},
		{name: "placeholder word", description: "This is placeholder content describing the agency mission statement."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			rec.Description = tt.description

			report := v.Validate(rec)
			assert.NotEmpty(t, report.Content, "placeholder text should fail content validation")
		})
	}
}

func TestValidate_DuplicateRelatedTerms(t *testing.T) {
	v := NewValidator(20, 1)

	rec := validRecord()
	rec.RelatedTerms = []string{"ESA", "spaceflight", "esa "}

	report := v.Validate(rec)
	require.NotEmpty(t, report.Content)
	assert.Contains(t, report.Content[0], "duplicate")
}

func TestClean(t *testing.T) {
	rec := Record{
		Acronym:      "  NASA ",
		FullName:     " National Aeronautics and Space Administration ",
		Description:  "  Space agency of the United States government.  ",
		Context:      " Aerospace ",
		RelatedTerms: []string{" ESA", "esa", "", "Spaceflight", "spaceflight ", "  "},
		Industry:     "Aerospace\n",
	}

	cleaned := Clean(rec)
	assert.Equal(t, "NASA", cleaned.Acronym)
	assert.Equal(t, "National Aeronautics and Space Administration", cleaned.FullName)
	assert.Equal(t, []string{"ESA", "Spaceflight"}, cleaned.RelatedTerms)
	assert.Equal(t, "Aerospace", cleaned.Industry)
}

func TestClean_Idempotent(t *testing.T) {
	records := []Record{
		validRecord(),
		{
			Acronym:      " CPU ",
			RelatedTerms: []string{"processor", "Processor", " chip "},
		},
		{},
	}

	for _, rec := range records {
		once := Clean(rec)
		twice := Clean(once)
		assert.Equal(t, once, twice, "Clean must be idempotent")
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	rec := validRecord()
	rec.ProcessedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rec.KeyHint = "AIzaSyEx..."
	rec.Attempt = 2

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestValidate_SerializationCategory(t *testing.T) {
	v := NewValidator(20, 1)
	report := v.Validate(validRecord())
	assert.Empty(t, report.Serialization)
}
