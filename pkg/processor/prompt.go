package processor

import (
	"fmt"
	"strings"
	"text/template"
)

// defaultPromptTemplate asks the model for the full enrichment payload as a
// single JSON object matching the validate.Record wire keys.
const defaultPromptTemplate = `Provide the following information for the acronym "{{.Acronym}}":
1. Full name/expansion
2. Detailed description
3. Common usage context
4. Related terms or synonyms
5. Industry/field of use

Respond with a single JSON object using exactly these keys:
full_name, description, context, related_terms, industry

related_terms must be a JSON array of strings. Do not include any text
outside the JSON object.`

type promptData struct {
	Acronym string
}

func parsePromptTemplate(text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultPromptTemplate
	}
	tmpl, err := template.New("enrichment").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return tmpl, nil
}

func (p *Processor) buildPrompt(acronym string) (string, error) {
	var sb strings.Builder
	if err := p.prompt.Execute(&sb, promptData{Acronym: acronym}); err != nil {
		return "", fmt.Errorf("execute prompt template: %w", err)
	}
	return sb.String(), nil
}
