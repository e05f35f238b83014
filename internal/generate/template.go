package generate

import (
	_ "embed"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-enricher/internal/lead"
)

//go:embed default_prompt.txt
var defaultPrompt string

// Missing replaces blank lead values in a prompt.
const Missing = "N/A"

// Template is a prompt with {variable} placeholders and an optional system
// instruction.
type Template struct {
	System string `yaml:"system"`
	Prompt string `yaml:"prompt"`
}

// DefaultTemplate returns the built-in cold outreach prompt.
func DefaultTemplate() Template {
	return Template{Prompt: defaultPrompt}
}

// LoadTemplate reads a prompt file. Files ending in .yaml or .yml carry
// "system" and "prompt" keys; anything else is the prompt text itself. An
// empty path yields the default template.
func LoadTemplate(path string) (Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, eris.Wrapf(err, "generate: read prompt file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return Template{}, eris.Wrapf(err, "generate: parse prompt file %s", path)
		}
		if strings.TrimSpace(t.Prompt) == "" {
			return Template{}, eris.Errorf("generate: prompt file %s has no prompt", path)
		}
		return t, nil
	default:
		if strings.TrimSpace(string(data)) == "" {
			return Template{}, eris.Errorf("generate: prompt file %s is empty", path)
		}
		return Template{Prompt: string(data)}, nil
	}
}

// templateFields binds each placeholder to the record field it reads.
var templateFields = map[string]string{
	"company_name":    lead.FieldCompanyName,
	"company_address": lead.FieldCompanyAddress,
	"company_phone":   lead.FieldPhone,
	"website":         lead.FieldWebsite,
	"rating":          lead.FieldRating,
	"review_count":    lead.FieldReviewCount,
	"research_brief":  lead.FieldResearchBrief,
	"linkedin_url":    lead.FieldLinkedInURL,
	"facebook_url":    lead.FieldFacebookURL,
	"instagram_url":   lead.FieldInstagramURL,
	"twitter_url":     lead.FieldTwitterURL,
}

// Variables returns the placeholder values for a record. Blank values and
// legacy "Not Found" markers become Missing.
func Variables(rec lead.Record, product string) map[string]string {
	vars := make(map[string]string, len(templateFields)+1)
	for name, field := range templateFields {
		vars[name] = Missing
		if rec.Has(field) {
			vars[name] = rec.Get(field)
		}
	}
	vars["product_description"] = orMissing(strings.TrimSpace(product))
	return vars
}

func orMissing(v string) string {
	if v == "" {
		return Missing
	}
	return v
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Fill substitutes {name} placeholders. Unknown placeholders are left as
// written so prompts can contain literal braces.
func (t Template) Fill(vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(t.Prompt, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}
