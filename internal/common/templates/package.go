// Package templates provides the text/template engine used to expand
// pipeline configuration values.
//
// The engine offers two evaluation modes:
//   - Render interpolates every action of a template into a string
//   - Evaluate returns the native value of a template made of exactly one
//     action ("{{ .items }}" yields the list itself), and falls back to
//     Render for anything else
//
// Templates are always parsed with missingkey=error, so a reference to a
// name absent from the data fails instead of rendering "<no value>".
// Parsed templates are cached by content hash; results are never cached.
//
// Usage Example:
//
//	engine := NewEngine(nil, extraFuncs)
//
//	data := map[string]interface{}{
//		"user": map[string]interface{}{"name": "Ada", "roles": []interface{}{"admin"}},
//	}
//
//	greeting, err := engine.Render("Hello {{ .user.name }}!", data)
//	roles, err := engine.Evaluate("{{ .user.roles }}", data) // []interface{}{"admin"}
//
// Extension functions are supplied as additional template.FuncMap values at
// construction time; later maps override earlier ones.
package templates
