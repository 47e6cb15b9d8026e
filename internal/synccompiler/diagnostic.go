package synccompiler

import "fmt"

// Diagnostic is a compile-time rejection of a sync (§4.3). Unbound
// references and malformed bind expressions are diagnostics, never
// warnings: a sync with any diagnostic does not enter the index.
type Diagnostic struct {
	Sync    string
	Rule    string
	Message string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("sync %q: %s: %s", d.Sync, d.Rule, d.Message)
}

func diag(sync, rule, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Sync: sync, Rule: rule, Message: fmt.Sprintf(format, args...)}
}
