package enhancer

// Technology is a language or stack recognised by the scored detector.
type Technology string

const (
	TechPython     Technology = "Python"
	TechJavaScript Technology = "JavaScript"
	TechSQL        Technology = "SQL"
	TechBash       Technology = "Bash"
	TechR          Technology = "R"
	TechRuby       Technology = "Ruby"
	TechHTMLCSS    Technology = "HTML/CSS"
	TechJava       Technology = "Java"
)

// Output format labels.
const (
	FormatText       = "Text response"
	FormatReact      = "React component"
	FormatVue        = "Vue component"
	FormatDocker     = "Docker configuration"
	FormatAPI        = "API specification"
	FormatPython     = "Code in Python"
	FormatJavaScript = "Code in JavaScript"
	FormatSQL        = "SQL query"
	FormatBash       = "Bash script"
	FormatR          = "R script"
	FormatRuby       = "Code in Ruby"
	FormatHTMLCSS    = "HTML/CSS code"
	FormatJava       = "Code in Java"
)

// TechDetails holds the attributes inferred for the detected technology.
// Only the fields relevant to that technology are ever set.
type TechDetails struct {
	Language  string `json:"language,omitempty"`
	Framework string `json:"framework,omitempty"`
	Runtime   string `json:"runtime,omitempty"`
	Output    string `json:"output,omitempty"`
	APIType   string `json:"api_type,omitempty"`

	Database         bool `json:"database,omitempty"`
	Web              bool `json:"web,omitempty"`
	ErrorHandling    bool `json:"error_handling,omitempty"`
	Joins            bool `json:"joins,omitempty"`
	Aggregation      bool `json:"aggregation,omitempty"`
	DataModification bool `json:"data_modification,omitempty"`
	Containerization bool `json:"containerization,omitempty"`
	DockerCompose    bool `json:"docker_compose,omitempty"`
	API              bool `json:"api,omitempty"`
	Responsive       bool `json:"responsive,omitempty"`
	Automation       bool `json:"automation,omitempty"`
	DataAnalysis     bool `json:"data_analysis,omitempty"`
}

type techPattern struct {
	tech         Technology
	keywords     []string // +1 each
	contextWords []string // +2 each
	excludeWords []string // -1 each
}

var explanationMarkers = []string{"explain", "describe", "what is", "how does"}

func excluding(words ...string) []string {
	return append(words, explanationMarkers...)
}

// languageTable is ordered: on equal scores the earlier technology wins.
var languageTable = []techPattern{
	{
		tech:         TechPython,
		keywords:     []string{"import ", "def ", "class ", "script", ".py", "pandas", "numpy", "requests", "flask", "django", "csv"},
		contextWords: []string{"python", "py", "pip", "conda", "virtualenv"},
		excludeWords: excluding("sql", "javascript", "java", "html", "css"),
	},
	{
		tech:         TechJavaScript,
		keywords:     []string{"function", "const ", "let ", "=>", "document", "window", "async", "await", "promise"},
		contextWords: []string{"javascript", "js", "node", "npm", "yarn"},
		excludeWords: excluding("python", "sql", "java", "html", "css"),
	},
	{
		tech:         TechSQL,
		keywords:     []string{"select", "from", "where", "join", "insert", "update", "delete", "create table", "alter table", "drop table", "group by", "having", "order by"},
		contextWords: []string{"sql", "query", "database", "table", "column"},
		excludeWords: excluding("python", "javascript", "java", "html", "css"),
	},
	{
		tech:         TechBash,
		keywords:     []string{"#!/bin/bash", "#!/bin/sh", "echo", "grep", "awk", "sed", "chmod", "sudo", "cron", "systemctl"},
		contextWords: []string{"bash", "shell", "terminal", "command line"},
		excludeWords: excluding("python", "javascript", "sql", "java", "r script", "r language"),
	},
	{
		tech:         TechR,
		keywords:     []string{"library(", "data.frame", "ggplot", "dplyr", "tidyverse", "read.csv", "lm(", "summary("},
		contextWords: []string{" r ", "rscript", "rstudio", "r language", "r script"},
		excludeWords: excluding("python", "javascript", "sql", "java", "bash", "react", "vue"),
	},
	{
		tech:         TechRuby,
		keywords:     []string{"def ", "class ", "require", "gem", "rails", "sinatra", "puts", "gets"},
		contextWords: []string{"ruby", "rb", "rails", "gem"},
		excludeWords: excluding("python", "javascript", "sql", "java"),
	},
	{
		tech:         TechHTMLCSS,
		keywords:     []string{"<html", "<div", "<p", "<h1", "css", "style", "class=", "id=", "margin", "padding", "color"},
		contextWords: []string{"html", "css", "webpage", "website", "frontend"},
		excludeWords: excluding("python", "javascript", "sql", "java"),
	},
	{
		tech:         TechJava,
		keywords:     []string{"public class", "private", "public static", "main(", "import java", "spring", "maven", "gradle"},
		contextWords: []string{"java", "jvm", "spring", "maven", "gradle"},
		excludeWords: excluding("python", "javascript", "sql", "html", "css"),
	},
}

// Special-case word lists. They only apply outside explanation prompts.
var (
	explanationContext = []string{"explain", "describe", "what is", "how does", "difference", "meaning", "concept"}
	apiWords           = []string{"api", "endpoint", "rest", "graphql"}
	buildVerbs         = []string{"write", "create", "build", "make", "generate", "develop", "implement"}
	apiLanguageWords   = []string{"python", "javascript", "java", "sql"}
)

// Conditional detail triggers per technology.
var (
	pythonDatabaseWords = []string{"database", "db", "postgresql", "mysql", "sqlite"}
	pythonWebWords      = []string{"web", "scrape", "requests", "urllib"}
	pythonErrorWords    = []string{"error", "exception", "try", "except"}
	sqlJoinWords        = []string{"join", "inner join", "left join", "right join", "outer join"}
	sqlAggregateWords   = []string{"sum", "count", "avg", "max", "min", "group by", "having"}
	sqlModifyWords      = []string{"insert", "update", "delete"}
	bashAutomationWords = []string{"automation", "cron", "schedule"}
	rAnalysisWords      = []string{"data", "analysis", "statistics", "visualization"}
)

func (p techPattern) score(promptLower string) int {
	return 2*countMatches(promptLower, p.contextWords) +
		countMatches(promptLower, p.keywords) -
		countMatches(promptLower, p.excludeWords)
}

// DetectTechnology scores a lowercased prompt against the technology table
// and returns the best positive match.
func DetectTechnology(promptLower string) (Technology, bool) {
	scores := make([]candidate[Technology], 0, len(languageTable))
	for _, p := range languageTable {
		scores = append(scores, candidate[Technology]{key: p.tech, score: p.score(promptLower)})
	}
	return argmax(scores)
}

// DetectLanguage decides the output format of a lowercased prompt and the
// technology details behind it. Framework and tooling mentions (React, Vue,
// Docker, API work) short-circuit the scored table unless the prompt reads
// like a request for an explanation.
func DetectLanguage(promptLower string) (string, TechDetails) {
	if format, details, ok := detectSpecialCase(promptLower); ok {
		return format, details
	}

	tech, ok := DetectTechnology(promptLower)
	if !ok {
		return FormatText, TechDetails{}
	}
	return describeTechnology(tech, promptLower)
}

func detectSpecialCase(p string) (string, TechDetails, bool) {
	if containsAny(p, explanationContext) {
		return "", TechDetails{}, false
	}

	switch {
	case contains(p, "react"):
		return FormatReact, TechDetails{Framework: "React"}, true
	case contains(p, "vue"):
		return FormatVue, TechDetails{Framework: "Vue"}, true
	case contains(p, "docker"):
		return FormatDocker, TechDetails{
			Containerization: true,
			DockerCompose:    contains(p, "compose"),
		}, true
	case containsAny(p, apiWords) && containsAny(p, buildVerbs) && !containsAny(p, apiLanguageWords):
		details := TechDetails{API: true}
		if contains(p, "rest") {
			details.APIType = "REST"
		} else if contains(p, "graphql") {
			details.APIType = "GraphQL"
		}
		return FormatAPI, details, true
	}
	return "", TechDetails{}, false
}

func describeTechnology(tech Technology, p string) (string, TechDetails) {
	var d TechDetails

	switch tech {
	case TechPython:
		d.Language = string(TechPython)
		if contains(p, "csv") {
			d.Output = "CSV file"
		}
		d.Database = containsAny(p, pythonDatabaseWords)
		d.Web = containsAny(p, pythonWebWords)
		d.ErrorHandling = containsAny(p, pythonErrorWords)
		return FormatPython, d

	case TechJavaScript:
		d.Language = string(TechJavaScript)
		switch {
		case contains(p, "react"):
			d.Framework = "React"
		case contains(p, "vue"):
			d.Framework = "Vue"
		case contains(p, "node"):
			d.Runtime = "Node.js"
		}
		return FormatJavaScript, d

	case TechSQL:
		d.Language = string(TechSQL)
		d.Joins = containsAny(p, sqlJoinWords)
		d.Aggregation = containsAny(p, sqlAggregateWords)
		d.DataModification = containsAny(p, sqlModifyWords)
		return FormatSQL, d

	case TechBash:
		d.Language = string(TechBash)
		d.Automation = containsAny(p, bashAutomationWords)
		return FormatBash, d

	case TechR:
		d.Language = string(TechR)
		d.DataAnalysis = containsAny(p, rAnalysisWords)
		return FormatR, d

	case TechRuby:
		d.Language = string(TechRuby)
		if contains(p, "rails") {
			d.Framework = "Rails"
		} else if contains(p, "sinatra") {
			d.Framework = "Sinatra"
		}
		return FormatRuby, d

	case TechHTMLCSS:
		d.Web = true
		d.Responsive = contains(p, "responsive")
		return FormatHTMLCSS, d

	case TechJava:
		d.Language = string(TechJava)
		if contains(p, "spring") {
			d.Framework = "Spring"
		}
		return FormatJava, d
	}

	return FormatText, d
}
