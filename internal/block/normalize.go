package block

import "regexp"

var helperRe = regexp.MustCompile(`\b(IS_BUILTIN|IS_MODULE|IS_ENABLED)\s*\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)`)

// NormalizeHelpers rewrites the Kconfig helper macros into defined() tests:
//
//	IS_BUILTIN(X) => defined(X)
//	IS_MODULE(X)  => defined(X_MODULE)
//	IS_ENABLED(X) => (defined(X) || defined(X_MODULE))
func NormalizeHelpers(expr string) string {
	return helperRe.ReplaceAllStringFunc(expr, func(call string) string {
		m := helperRe.FindStringSubmatch(call)
		sym := m[2]
		switch m[1] {
		case "IS_BUILTIN":
			return "defined(" + sym + ")"
		case "IS_MODULE":
			return "defined(" + sym + "_MODULE)"
		default:
			return "(defined(" + sym + ") || defined(" + sym + "_MODULE))"
		}
	})
}
