// Package render personalizes message templates against a recipient and the
// execution context.
package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// templateData is what a message template sees. Custom recipient fields are
// under .Fields, event data under .Context.
type templateData struct {
	FirstName       string
	LastName        string
	Email           string
	EngagementScore int
	Tags            []string
	Fields          map[string]string
	Context         map[string]string
}

// TemplateRenderer renders Go text templates. It never mutates state and is
// safe for concurrent use.
type TemplateRenderer struct{}

func NewTemplateRenderer() *TemplateRenderer { return &TemplateRenderer{} }

func (r *TemplateRenderer) Render(tmpl string, rcp *domain.Recipient, execCtx map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := template.New("message").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var sb strings.Builder
	err = t.Execute(&sb, templateData{
		FirstName:       rcp.FirstName,
		LastName:        rcp.LastName,
		Email:           rcp.Email,
		EngagementScore: rcp.EngagementScore,
		Tags:            rcp.Tags,
		Fields:          rcp.Fields,
		Context:         execCtx,
	})
	if err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return sb.String(), nil
}
