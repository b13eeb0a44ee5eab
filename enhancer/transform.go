package enhancer

import "strings"

// Result is the structured record produced for a prompt.
type Result struct {
	Context          ContextLabel `json:"context"`
	Problem          string       `json:"problem"`
	ExpectedSolution string       `json:"expected_solution"`
	OutputFormat     string       `json:"output_format"`

	// Cached is set by callers that serve the record from a cache.
	Cached bool `json:"cached"`
}

// Field names of Result as they appear in JSON.
const (
	FieldContext          = "context"
	FieldProblem          = "problem"
	FieldExpectedSolution = "expected_solution"
	FieldOutputFormat     = "output_format"
)

// DefaultFields lists the record fields in their canonical order.
var DefaultFields = []string{FieldContext, FieldProblem, FieldExpectedSolution, FieldOutputFormat}

// Transform classifies a prompt. It does not validate its input; callers are
// expected to run Validate first. Identical prompts always produce identical
// records.
func Transform(prompt string) Result {
	lower := strings.ToLower(prompt)

	context := DetectContext(lower)
	format, details := DetectLanguage(lower)

	return Result{
		Context:          context,
		Problem:          strings.TrimSpace(prompt),
		ExpectedSolution: BuildExpectedSolution(context, details, lower),
		OutputFormat:     format,
	}
}

// Fields returns the record as a map keyed by JSON field name, without the
// cached flag.
func (r Result) Fields() map[string]string {
	return map[string]string{
		FieldContext:          string(r.Context),
		FieldProblem:          r.Problem,
		FieldExpectedSolution: r.ExpectedSolution,
		FieldOutputFormat:     r.OutputFormat,
	}
}

// Shorten keeps only the first sentence of the expected solution.
func (r Result) Shorten() Result {
	first, _, _ := strings.Cut(r.ExpectedSolution, ".")
	r.ExpectedSolution = first + "."
	return r
}
