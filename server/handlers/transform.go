package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/teilomillet/prompt2json/enhancer"
)

// TransformRequest is the body of POST /transform.
type TransformRequest struct {
	Prompt json.RawMessage `json:"prompt"`
}

// CustomTransformRequest is the body of POST /transform/custom.
type CustomTransformRequest struct {
	Prompt json.RawMessage `json:"prompt"`

	// IncludeKeys selects the record fields to return. Unknown names are
	// ignored. Absent or null means every field.
	IncludeKeys []string `json:"include_keys"`

	// OutputStyle "short" keeps the first sentence of expected_solution.
	// Anything else is treated as "detailed".
	OutputStyle string `json:"output_style"`
}

// OutputStyleShort truncates expected_solution to its first sentence.
const OutputStyleShort = "short"

// Transform handles POST /transform. Results are cached by normalized prompt
// and the response reports whether it came from the cache.
func (a *API) Transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	prompt, ok := a.validatedPrompt(w, r, req.Prompt)
	if !ok {
		return
	}

	result, err := a.processor.Process(r.Context(), prompt)
	if err != nil {
		a.writeProcessingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TransformCustom handles POST /transform/custom. It never uses the cache
// and always reports cached as false.
func (a *API) TransformCustom(w http.ResponseWriter, r *http.Request) {
	var req CustomTransformRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	prompt, ok := a.validatedPrompt(w, r, req.Prompt)
	if !ok {
		return
	}

	result, err := a.processor.Transform(r.Context(), prompt)
	if err != nil {
		a.writeProcessingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, customize(result, req.IncludeKeys, req.OutputStyle))
}

// customize applies the output style and keeps only the requested fields.
func customize(result enhancer.Result, includeKeys []string, style string) map[string]interface{} {
	if style == OutputStyleShort {
		result = result.Shorten()
	}
	if includeKeys == nil {
		includeKeys = enhancer.DefaultFields
	}

	fields := result.Fields()
	out := make(map[string]interface{}, len(includeKeys)+1)
	for _, key := range includeKeys {
		if v, ok := fields[key]; ok {
			out[key] = v
		}
	}
	out["cached"] = false
	return out
}
