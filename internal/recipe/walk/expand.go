package walk

import (
	"fmt"
	"strings"

	"github.com/hob-build/hob/internal/recipe"
)

// TemplateVars is the fixed set of substitution variables the driver builds
// immediately after parsing, per spec.md §4.8.
type TemplateVars struct {
	SelfRef     string
	Name        string
	Version     string
	Description string
	Revision    int
}

// VarsFor builds the TemplateVars for r.
func VarsFor(r *recipe.Recipe) TemplateVars {
	return TemplateVars{
		SelfRef:     r.SelfRef(),
		Name:        r.Name,
		Version:     r.Version,
		Description: r.Description,
		Revision:    r.Revision,
	}
}

// Expander is a minimal `{{var}}` substitution engine satisfying Visitor.
// The full template expression language (conditionals, helpers, etc.) is out
// of scope for this engine — spec.md §1 treats the substitution pass as an
// opaque walker over string-bearing fields, pluggable behind this same
// Visitor interface. A richer Expander can be swapped in without touching
// Walk.
type Expander struct {
	vars TemplateVars
}

// NewExpander builds an Expander for vars.
func NewExpander(vars TemplateVars) *Expander {
	return &Expander{vars: vars}
}

// EnterString implements Visitor.
func (e *Expander) EnterString(s *string) {
	if !strings.Contains(*s, "{{") {
		return
	}
	replacer := strings.NewReplacer(
		"{{self_ref}}", e.vars.SelfRef,
		"{{name}}", e.vars.Name,
		"{{version}}", e.vars.Version,
		"{{description}}", e.vars.Description,
		"{{revision}}", fmt.Sprintf("%d", e.vars.Revision),
	)
	*s = replacer.Replace(*s)
}

// Apply runs the template walker over r using vars built from r itself.
func Apply(r *recipe.Recipe) {
	Walk(r, NewExpander(VarsFor(r)))
}
