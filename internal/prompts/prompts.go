// Package prompts renders the embedded instruction templates shared by the
// local and hosted model paths.
package prompts

import (
	"embed"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/habiliai/nativeagent/errors"
)

//go:embed data/instructions/*.md.tmpl
var instructionsFS embed.FS

var templates = template.Must(
	template.New("").Funcs(funcMap()).ParseFS(instructionsFS, "data/instructions/*.md.tmpl"),
)

const (
	Grounding       = "grounding.md.tmpl"
	HostedSystem    = "hosted_system.md.tmpl"
	Distill         = "distill.md.tmpl"
	DistillRequest  = "distill_request.md.tmpl"
	Extract         = "extract.md.tmpl"
	ExtractRequest  = "extract_request.md.tmpl"
	Summarize       = "summarize.md.tmpl"
	AnalyzeFailure  = "analyze_failure.md.tmpl"
	AnalyzeRequest  = "analyze_request.md.tmpl"
	BaselinePersona = "baseline_persona.md.tmpl"
)

func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["bullets"] = func(items []string) string {
		if len(items) == 0 {
			return ""
		}
		return "- " + strings.Join(items, "\n- ")
	}
	return fm
}

// Render executes the named template. Surrounding whitespace is trimmed.
func Render(name string, values any) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, values); err != nil {
		return "", errors.Wrapf(err, "failed to render %s", name)
	}
	return strings.TrimSpace(sb.String()), nil
}

// MustRender is Render for templates without inputs that can fail.
func MustRender(name string, values any) string {
	out, err := Render(name, values)
	if err != nil {
		panic(err)
	}
	return out
}
