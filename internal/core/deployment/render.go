package deployment

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// =============================================================================
// Template Rendering
// =============================================================================

// missingKeyRegex extracts the key name from text/template's missingkey=error message.
var missingKeyRegex = regexp.MustCompile(`map has no entry for key "([^"]*)"`)

// IsTemplate reports whether name carries the template suffix.
func IsTemplate(name string) bool {
	return strings.HasSuffix(name, TemplateSuffix)
}

// RenderedName strips the template suffix from name.
func RenderedName(name string) string {
	return strings.TrimSuffix(name, TemplateSuffix)
}

// Render executes a template against vars with strict-undefined semantics:
// any reference to a variable that vars does not define fails with a
// *MissingVariableError naming the variable and source. Nothing is returned
// on failure, so callers never write partially rendered output.
//
// Templates use Go template syntax with the sprig function library:
//
//	repository: {{ .git_url }}
//	name: {{ .project_name | lower }}
func Render(source string, content []byte, vars VariableSet) ([]byte, error) {
	tpl, err := template.New(source).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(string(content))
	if err != nil {
		return nil, &SyncError{Op: "parse template", Path: source, Err: err}
	}

	var out bytes.Buffer
	if err := tpl.Execute(&out, map[string]any(vars)); err != nil {
		var execErr template.ExecError
		if errors.As(err, &execErr) {
			if m := missingKeyRegex.FindStringSubmatch(execErr.Err.Error()); len(m) == 2 {
				return nil, &MissingVariableError{Variable: m[1], Source: source}
			}
		}
		if m := missingKeyRegex.FindStringSubmatch(err.Error()); len(m) == 2 {
			return nil, &MissingVariableError{Variable: m[1], Source: source}
		}
		return nil, &SyncError{Op: "render template", Path: source, Err: err}
	}
	return out.Bytes(), nil
}
