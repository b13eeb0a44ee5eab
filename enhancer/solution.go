package enhancer

import "strings"

const (
	solutionSlot  = "solution"
	multiStepSlot = "multi-step solution with clear sequence of operations"
)

// baseTemplate is the opening sentence of an expected solution. Slotted
// templates name the deliverable with a "solution" slot that is widened for
// multi-step prompts; the others never change.
type baseTemplate struct {
	prefix  string
	suffix  string
	slotted bool
}

func (t baseTemplate) render(multiStep bool) string {
	if !t.slotted {
		return t.prefix
	}
	slot := solutionSlot
	if multiStep {
		slot = multiStepSlot
	}
	return t.prefix + slot + t.suffix
}

var baseTemplates = map[Category]baseTemplate{
	CategoryGenerateCode:        {prefix: "A complete, working code ", suffix: " that addresses the requirements.", slotted: true},
	CategoryDebugFix:            {prefix: "A ", suffix: " that identifies and fixes the issue with clear explanations.", slotted: true},
	CategoryExplain:             {prefix: "A clear, comprehensive explanation with examples and context."},
	CategoryProfessionalWriting: {prefix: "A professional and well-structured document with appropriate formatting and language."},
	CategoryOptimize:            {prefix: "An optimized ", suffix: " with performance improvements and best practices.", slotted: true},
	CategoryAnalyze:             {prefix: "A detailed analysis with findings, recommendations, and insights."},
	CategoryDesign:              {prefix: "A well-structured design with clear architecture and implementation guidance."},
}

var (
	sequenceWords  = []string{"first", "second", "third", "step 1", "step 2", "step 3"}
	connectorWords = []string{"and", "then", "also", "next", "after", "finally", "followed by"}
	operationVerbs = []string{
		"read", "write", "create", "delete", "update", "insert", "fetch", "download", "upload",
		"connect", "disconnect", "import", "export", "parse", "validate", "transform", "filter",
		"sort", "group", "join", "merge", "split", "extract", "generate", "process", "analyze",
		"scrape", "save", "load", "store", "retrieve", "calculate", "compute", "format",
	}
)

// Generic add-on clauses, checked independently in this order.
var addOns = []struct {
	triggers []string
	clause   string
}{
	{[]string{"error", "exception"}, "error handling and validation"},
	{[]string{"test"}, "unit tests and test cases"},
	{[]string{"documentation", "comment"}, "comprehensive documentation and comments"},
	{[]string{"security"}, "security best practices and considerations"},
	{[]string{"performance"}, "performance optimization techniques"},
}

const sequencingClause = "step-by-step implementation with proper sequencing"

// BuildExpectedSolution composes the expected solution sentence for a prompt
// from its context label, its technology details and the lowercased prompt.
func BuildExpectedSolution(context ContextLabel, details TechDetails, promptLower string) string {
	label := strings.ToLower(string(context))
	professional := isProfessionalRequest(label, promptLower)
	multiStep, sequenced := detectSteps(promptLower)

	clauses := techClauses(details, promptLower)
	if professional {
		clauses = append(clauses, professionalClauses(promptLower)...)
	}
	for _, a := range addOns {
		if containsAny(promptLower, a.triggers) {
			clauses = append(clauses, a.clause)
		}
	}
	if multiStep && (sequenced || len(clauses) > 3) {
		clauses = append(clauses, sequencingClause)
	}

	base := baseTemplates[baseCategory(label, professional)].render(multiStep)
	clauses = dedupeClauses(clauses)
	if len(clauses) == 0 {
		return base
	}
	return base + " The solution should include " + strings.Join(clauses, ", ") + "."
}

func isProfessionalRequest(label, promptLower string) bool {
	return strings.Contains(label, "provide information or assistance") &&
		containsAny(promptLower, professionalTriggers)
}

// baseCategory picks the template from the wording of the context label.
// Anything unrecognised is treated as a code generation request.
func baseCategory(label string, professional bool) Category {
	switch {
	case strings.Contains(label, "generate code"):
		return CategoryGenerateCode
	case strings.Contains(label, "debug") || strings.Contains(label, "fix"):
		return CategoryDebugFix
	case strings.Contains(label, "explain"):
		return CategoryExplain
	case professional:
		return CategoryProfessionalWriting
	case strings.Contains(label, "optimize"):
		return CategoryOptimize
	case strings.Contains(label, "analyze"):
		return CategoryAnalyze
	case strings.Contains(label, "design"):
		return CategoryDesign
	default:
		return CategoryGenerateCode
	}
}

// detectSteps reports whether a prompt describes a multi-step task and
// whether it uses explicit sequence words. Without sequence words a prompt is
// multi-step only when it names two or more distinct operations joined by a
// connector.
func detectSteps(promptLower string) (multiStep, sequenced bool) {
	sequenced = containsAny(promptLower, sequenceWords)
	if sequenced {
		return true, true
	}
	multiStep = countMatches(promptLower, operationVerbs) >= 2 && containsAny(promptLower, connectorWords)
	return multiStep, false
}

// techClauses returns the clauses of the single technology branch that fires.
func techClauses(d TechDetails, p string) []string {
	var c []string

	switch {
	case d.Language == string(TechPython):
		c = append(c, "Python code with proper imports and structure")
		if d.Database {
			c = append(c, "database connection and query handling")
		}
		if d.Web {
			c = append(c, "web scraping or HTTP requests")
		}
		if d.Output == "CSV file" {
			c = append(c, "CSV file generation and data export")
		}
		if d.ErrorHandling {
			c = append(c, "comprehensive error handling and exception management")
		}

	case d.Framework == "React":
		c = append(c, "React component with hooks and proper state management")

	case d.Language == string(TechSQL):
		c = append(c, "SQL query with proper syntax and optimization")
		if d.Joins {
			c = append(c, "appropriate table joins")
		}
		if d.Aggregation {
			c = append(c, "aggregation functions and grouping")
		}
		if d.DataModification {
			c = append(c, "data modification operations (INSERT/UPDATE/DELETE)")
		}

	case d.Language == string(TechJavaScript):
		c = append(c, "JavaScript code with modern ES6+ features")
		switch {
		case d.Framework == "Vue":
			c = append(c, "Vue component with composition API")
		case d.Runtime == "Node.js":
			c = append(c, "Node.js server-side implementation")
		}

	case d.Language == string(TechBash):
		c = append(c, "Bash script with proper shebang and error handling")
		if d.Automation {
			c = append(c, "automation and scheduling capabilities")
		}

	case d.Language == string(TechR):
		c = append(c, "R script with proper library imports")
		if d.DataAnalysis {
			c = append(c, "data analysis and visualization")
		}

	case d.Language == string(TechRuby):
		c = append(c, "Ruby code with proper structure and conventions")
		if d.Framework == "Rails" {
			c = append(c, "Rails framework implementation")
		} else if d.Framework == "Sinatra" {
			c = append(c, "Sinatra web framework")
		}

	case d.Web && contains(p, "html"):
		c = append(c, "HTML structure with CSS styling")
		if d.Responsive {
			c = append(c, "responsive design implementation")
		}
	}

	return c
}

func professionalClauses(p string) []string {
	var c []string
	if contains(p, "email") {
		c = append(c, "proper email formatting with subject line and professional tone")
	}
	if contains(p, "meeting") {
		c = append(c, "clear meeting request with proposed time and agenda")
	}
	if contains(p, "business") {
		c = append(c, "business-appropriate language and structure")
	}
	if contains(p, "professional") {
		c = append(c, "professional tone and formatting")
	}
	return c
}

// dedupeClauses drops a clause when an earlier kept clause already covers its
// topic. Matching is by substring, so a kept "web" clause also suppresses any
// later clause that merely contains "web".
func dedupeClauses(clauses []string) []string {
	kept := make([]string, 0, len(clauses))
	seen := func(word string) bool {
		for _, k := range kept {
			if strings.Contains(k, word) {
				return true
			}
		}
		return false
	}

	for _, clause := range clauses {
		switch {
		case strings.Contains(clause, "error handling") && seen("error"):
			continue
		case strings.Contains(clause, "database") && seen("database"):
			continue
		case strings.Contains(clause, "web") && seen("web"):
			continue
		}
		kept = append(kept, clause)
	}
	return kept
}
