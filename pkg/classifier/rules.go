// Package classifier scores raw activity text into domain, work type,
// complexity and importance, and aggregates related activity into ephemeral
// work sessions that may be captured as memories.
//
// All scoring tables are plain data: they can be loaded from a JSON file and
// tuned without code changes. DefaultRules returns the built-in tables.
package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// DomainRule describes one scored knowledge domain.
//
// Scoring per hit: keyword +2, tool +3, pattern +1. The highest-scoring
// domain with a positive score wins; text matching no domain classifies as
// "general".
type DomainRule struct {
	// Name is the domain identifier, e.g. "software-development".
	Name string `json:"name"`

	// Keywords are case-insensitive substrings worth 2 points each.
	Keywords []string `json:"keywords"`

	// Tools are tool names worth 3 points each.
	Tools []string `json:"tools"`

	// Patterns are regular expressions worth 1 point each.
	Patterns []string `json:"patterns"`
}

// WorkPattern describes one scored work type.
//
// Scoring per hit: indicator +2, sequence step +1.
type WorkPattern struct {
	// Name is the work-type identifier, e.g. "problemSolving".
	Name string `json:"name"`

	// Indicators are case-insensitive substrings worth 2 points each.
	Indicators []string `json:"indicators"`

	// Sequence are step words worth 1 point each.
	Sequence []string `json:"sequence"`

	// BaseImportance seeds the importance level before escalation.
	BaseImportance Importance `json:"base_importance"`
}

// Rules bundles every scoring table the classifier consults.
type Rules struct {
	// Domains are the scored knowledge domains.
	Domains []DomainRule `json:"domains"`

	// WorkPatterns is the fixed library of work types.
	WorkPatterns []WorkPattern `json:"work_patterns"`

	// ComplexityPatterns match language signalling complex work (+2).
	ComplexityPatterns []string `json:"complexity_patterns"`

	// TechnicalPatterns match technical language (+1).
	TechnicalPatterns []string `json:"technical_patterns"`

	// FrustrationPatterns match frustration language (+2).
	FrustrationPatterns []string `json:"frustration_patterns"`

	// SuccessPatterns escalate importance to high when matched.
	SuccessPatterns []string `json:"success_patterns"`

	// DiscoveryPatterns escalate importance to high when matched.
	DiscoveryPatterns []string `json:"discovery_patterns"`

	// Categories maps a domain name to the memory category synthesized
	// memories are filed under.
	Categories map[string]string `json:"categories"`
}

// LoadRules reads a Rules table from a JSON file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}

	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}
	return &rules, nil
}

// DefaultRules returns the built-in scoring tables.
func DefaultRules() *Rules {
	return &Rules{
		Domains: []DomainRule{
			{
				Name: "software-development",
				Keywords: []string{
					"bug", "fix", "implement", "refactor", "code", "function",
					"compile", "deploy", "test", "api", "endpoint", "merge",
				},
				Tools: []string{
					"git", "docker", "npm", "make", "pytest", "grep",
					"vim", "vscode", "curl", "kubectl",
				},
				Patterns: []string{
					`\b[\w/]+\.(go|py|js|ts|rs|java|c|cpp)\b`,
					`\bstack\s*trace\b`,
					`\bpull\s*request\b`,
				},
			},
			{
				Name: "data-science",
				Keywords: []string{
					"dataset", "model", "training", "feature", "accuracy",
					"regression", "cluster", "notebook", "analysis",
				},
				Tools: []string{
					"pandas", "numpy", "jupyter", "sklearn", "pytorch", "tensorflow",
				},
				Patterns: []string{
					`\b\d+(\.\d+)?%\s*(accuracy|precision|recall)\b`,
					`\bp-value\b`,
				},
			},
			{
				Name: "infrastructure",
				Keywords: []string{
					"server", "deployment", "pipeline", "monitoring", "backup",
					"dns", "certificate", "firewall", "scaling",
				},
				Tools: []string{
					"terraform", "ansible", "nginx", "prometheus", "grafana", "systemd",
				},
				Patterns: []string{
					`\b\d{1,3}(\.\d{1,3}){3}\b`,
					`\bport\s+\d+\b`,
				},
			},
			{
				Name: "writing",
				Keywords: []string{
					"document", "draft", "article", "readme", "proposal",
					"outline", "edit", "publish",
				},
				Tools: []string{
					"markdown", "latex", "pandoc",
				},
				Patterns: []string{
					`\bchapter\s+\d+\b`,
				},
			},
		},
		WorkPatterns: []WorkPattern{
			{
				Name: "problemSolving",
				Indicators: []string{
					"fixed", "solved", "debugged", "resolved", "root cause",
					"figured out", "tracked down",
				},
				Sequence:       []string{"reproduce", "investigate", "diagnose", "fix", "verify"},
				BaseImportance: ImportanceMedium,
			},
			{
				Name: "implementation",
				Indicators: []string{
					"implemented", "built", "added", "created", "wrote", "shipped",
				},
				Sequence:       []string{"design", "implement", "test", "refactor"},
				BaseImportance: ImportanceMedium,
			},
			{
				Name: "configuration",
				Indicators: []string{
					"configured", "installed", "set up", "enabled", "tuned", "migrated",
				},
				Sequence:       []string{"install", "configure", "validate"},
				BaseImportance: ImportanceMedium,
			},
			{
				Name: "research",
				Indicators: []string{
					"researched", "compared", "evaluated", "explored", "learned", "read about",
				},
				Sequence:       []string{"search", "read", "compare", "summarize"},
				BaseImportance: ImportanceMedium,
			},
			{
				Name: "workflow",
				Indicators: []string{
					"planned", "organized", "scheduled", "reviewed", "triaged",
				},
				Sequence:       []string{"plan", "assign", "review"},
				BaseImportance: ImportanceLow,
			},
		},
		ComplexityPatterns: []string{
			`\b(complex|complicated|tricky|intricate|convoluted|edge case)\b`,
			`\b(race condition|deadlock|heisenbug|corruption)\b`,
		},
		TechnicalPatterns: []string{
			`\b(async|mutex|goroutine|thread|pointer|schema|index|cache|protocol)\b`,
			`\b(sql|http|tcp|tls|json|yaml)\b`,
		},
		FrustrationPatterns: []string{
			`\b(stuck|frustrat\w*|annoying|painful|hours|finally|still failing)\b`,
			`\b(why (is|does|won't)|doesn't work|not working)\b`,
		},
		SuccessPatterns: []string{
			`\b(works now|working now|all tests pass\w*|success\w*|shipped|finally work\w*)\b`,
			`\bdeployed to production\b`,
		},
		DiscoveryPatterns: []string{
			`\b(discovered|realized|found (out|that)|turns out|learned that|aha)\b`,
		},
		Categories: map[string]string{
			"software-development": "code",
			"data-science":         "research",
			"infrastructure":       "integration",
			"writing":              "docs",
			"general":              "general",
		},
	}
}
