package enhancer

// Category is an intent class scored by DetectContext.
type Category string

const (
	CategoryExplain             Category = "explain"
	CategoryProfessionalWriting Category = "professional_writing"
	CategoryGenerateCode        Category = "generate_code"
	CategoryDebugFix            Category = "debug_fix"
	CategoryOptimize            Category = "optimize"
	CategoryAnalyze             Category = "analyze"
	CategoryDesign              Category = "design"
)

// ContextLabel is the canonical sentence describing the user's intent.
type ContextLabel string

const (
	ContextGenerateCode ContextLabel = "The user is asking an AI assistant to generate code or create a technical solution."
	ContextDebugFix     ContextLabel = "The user is asking an AI assistant to debug, fix, or troubleshoot an issue."
	ContextExplain      ContextLabel = "The user is asking an AI assistant to explain a concept or provide educational information."
	ContextOptimize     ContextLabel = "The user is asking an AI assistant to optimize or improve existing code or processes."
	ContextAnalyze      ContextLabel = "The user is asking an AI assistant to analyze, review, or evaluate something."
	ContextDesign       ContextLabel = "The user is asking an AI assistant to design or architect a solution."
	ContextDefault      ContextLabel = "The user is asking an AI assistant to provide information or assistance."
)

// professionalTriggers marks prompts asking for business documents. The same
// list drives context scoring and the professional solution template.
var professionalTriggers = []string{
	"professional email", "business email", "business letter", "formal letter",
	"meeting request", "business proposal", "report", "memo", "presentation",
	"cover letter", "resume", "cv",
}

type categoryKeywords struct {
	category Category
	keywords []string
}

// contextTable is ordered: on equal scores the earlier category wins.
var contextTable = []categoryKeywords{
	{CategoryExplain, []string{
		"explain", "what is", "how does", "describe", "tell me about", "understand",
		"meaning", "definition", "concept", "why", "when", "where", "difference", "between",
	}},
	{CategoryProfessionalWriting, professionalTriggers},
	{CategoryGenerateCode, []string{
		"write", "create", "build", "make", "generate", "develop", "implement",
		"code", "script", "function", "program", "class", "method",
	}},
	{CategoryDebugFix, []string{
		"debug", "fix", "error", "issue", "problem", "bug", "troubleshoot", "resolve",
		"correct", "repair", "broken", "not working", "failing", "exception", "crash", "hang",
	}},
	// "optimize" appears twice and therefore scores 2.
	{CategoryOptimize, []string{
		"optimize", "improve", "enhance", "performance", "faster", "better",
		"efficient", "refactor", "speed up", "optimize",
	}},
	{CategoryAnalyze, []string{
		"analyze", "review", "evaluate", "assess", "examine", "inspect", "check",
		"validate", "compare", "contrast",
	}},
	{CategoryDesign, []string{
		"design", "architecture", "structure", "plan", "strategy", "approach",
		"methodology", "blueprint", "framework",
	}},
}

// Professional writing is scored like every other category but shares the
// default sentence; the solution builder tells the two apart again.
var contextLabels = map[Category]ContextLabel{
	CategoryExplain:             ContextExplain,
	CategoryProfessionalWriting: ContextDefault,
	CategoryGenerateCode:        ContextGenerateCode,
	CategoryDebugFix:            ContextDebugFix,
	CategoryOptimize:            ContextOptimize,
	CategoryAnalyze:             ContextAnalyze,
	CategoryDesign:              ContextDesign,
}

// ClassifyContext returns the highest scoring intent category of a lowercased
// prompt. The boolean is false when no keyword matched at all.
func ClassifyContext(promptLower string) (Category, bool) {
	scores := make([]candidate[Category], 0, len(contextTable))
	for _, entry := range contextTable {
		scores = append(scores, candidate[Category]{
			key:   entry.category,
			score: countMatches(promptLower, entry.keywords),
		})
	}
	return argmax(scores)
}

// DetectContext maps a lowercased prompt to its canonical context sentence.
func DetectContext(promptLower string) ContextLabel {
	category, ok := ClassifyContext(promptLower)
	if !ok {
		return ContextDefault
	}
	return contextLabels[category]
}
