// Package hoberr formats the engine's error taxonomy for CLI display: parse
// errors get a source span, label and kind; everything else is printed as
// the plain error chain.
package hoberr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hob-build/hob/internal/engine"
	"github.com/hob-build/hob/internal/fetch"
	"github.com/hob-build/hob/internal/recipe"
)

// Format renders err for CLI display: one "line:col: kind: message" line per
// parse error, an itemized list for an aggregated fetch failure, and the bare
// error chain otherwise. No help or suggestion text is added to any of them.
func Format(err error) string {
	var parseErrs recipe.ParseErrors
	if errors.As(err, &parseErrs) {
		return formatParseErrors(parseErrs)
	}

	var engErr *engine.EngineError
	if errors.As(err, &engErr) {
		return formatEngineError(engErr)
	}

	return err.Error()
}

func formatParseErrors(errs recipe.ParseErrors) string {
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d:%d: %s: %s", e.Pos.Line, e.Pos.Col, e.Kind, e.Msg)
	}
	return b.String()
}

func formatEngineError(e *engine.EngineError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch failed for %d artifact(s):", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteByte('\n')
		var vf *fetch.VerificationFailed
		if errors.As(f, &vf) {
			fmt.Fprintf(&b, "  %s: %s copy failed verification: %v", vf.Path, vf.Affected, vf.Failures)
			continue
		}
		fmt.Fprintf(&b, "  %s", f)
	}
	return b.String()
}
