package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Complexity is the estimated difficulty of a piece of activity text.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Importance is the estimated significance of a piece of activity text.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Classification is the result of scoring one activity text.
type Classification struct {
	// Domain is the best-scoring domain, or "general".
	Domain string `json:"domain"`

	// WorkType is the best-scoring work pattern, or "general".
	WorkType string `json:"work_type"`

	// Complexity is the accumulated complexity level.
	Complexity Complexity `json:"complexity"`

	// Importance is the work type's base importance, escalated to high
	// when success or discovery language is present.
	Importance Importance `json:"importance"`

	// Indicators lists the matched work-type, success and discovery
	// indicators.
	Indicators []string `json:"indicators,omitempty"`

	// Tools lists the matched domain tools.
	Tools []string `json:"tools,omitempty"`
}

// HasSuccessSignal reports whether a success or discovery indicator matched.
func (c *Classification) HasSuccessSignal() bool {
	for _, ind := range c.Indicators {
		if strings.HasPrefix(ind, "success:") || strings.HasPrefix(ind, "discovery:") {
			return true
		}
	}
	return false
}

// Classifier scores activity text against compiled rule tables.
//
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules       *Rules
	domainRE    map[string][]*regexp.Regexp
	complexity  []*regexp.Regexp
	technical   []*regexp.Regexp
	frustration []*regexp.Regexp
	success     []*regexp.Regexp
	discovery   []*regexp.Regexp
}

// New compiles the given rule tables into a Classifier. Rules may be nil,
// in which case DefaultRules is used.
func New(rules *Rules) (*Classifier, error) {
	if rules == nil {
		rules = DefaultRules()
	}

	c := &Classifier{
		rules:    rules,
		domainRE: make(map[string][]*regexp.Regexp, len(rules.Domains)),
	}

	var err error
	for _, d := range rules.Domains {
		if c.domainRE[d.Name], err = compileAll(d.Patterns); err != nil {
			return nil, fmt.Errorf("classifier: domain %q: %w", d.Name, err)
		}
	}
	if c.complexity, err = compileAll(rules.ComplexityPatterns); err != nil {
		return nil, fmt.Errorf("classifier: complexity: %w", err)
	}
	if c.technical, err = compileAll(rules.TechnicalPatterns); err != nil {
		return nil, fmt.Errorf("classifier: technical: %w", err)
	}
	if c.frustration, err = compileAll(rules.FrustrationPatterns); err != nil {
		return nil, fmt.Errorf("classifier: frustration: %w", err)
	}
	if c.success, err = compileAll(rules.SuccessPatterns); err != nil {
		return nil, fmt.Errorf("classifier: success: %w", err)
	}
	if c.discovery, err = compileAll(rules.DiscoveryPatterns); err != nil {
		return nil, fmt.Errorf("classifier: discovery: %w", err)
	}

	return c, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Classify scores the given activity text.
func (c *Classifier) Classify(text string) Classification {
	lower := strings.ToLower(text)

	result := Classification{
		Domain:   "general",
		WorkType: "general",
	}

	result.Domain, result.Tools = c.classifyDomain(lower)

	workType, base, indicators := c.classifyWorkType(lower)
	result.WorkType = workType
	result.Indicators = indicators

	result.Complexity = c.classifyComplexity(text, lower)

	result.Importance = base
	if result.Importance == "" {
		result.Importance = ImportanceLow
	}
	for _, re := range c.success {
		if m := re.FindString(text); m != "" {
			result.Importance = ImportanceHigh
			result.Indicators = append(result.Indicators, "success:"+strings.ToLower(m))
			break
		}
	}
	for _, re := range c.discovery {
		if m := re.FindString(text); m != "" {
			result.Importance = ImportanceHigh
			result.Indicators = append(result.Indicators, "discovery:"+strings.ToLower(m))
			break
		}
	}

	return result
}

// classifyDomain returns the highest-scoring domain with a positive score,
// along with the tools that matched. Ties keep the first-listed domain.
func (c *Classifier) classifyDomain(lower string) (string, []string) {
	best := "general"
	bestScore := 0
	var bestTools []string

	for _, d := range c.rules.Domains {
		score := 0
		var tools []string
		for _, kw := range d.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score += 2
			}
		}
		for _, tool := range d.Tools {
			if strings.Contains(lower, strings.ToLower(tool)) {
				score += 3
				tools = append(tools, tool)
			}
		}
		for _, re := range c.domainRE[d.Name] {
			if re.MatchString(lower) {
				score++
			}
		}
		if score > bestScore {
			best = d.Name
			bestScore = score
			bestTools = tools
		}
	}

	return best, bestTools
}

// classifyWorkType returns the highest-scoring work pattern with a positive
// score, its base importance, and the indicators that matched.
func (c *Classifier) classifyWorkType(lower string) (string, Importance, []string) {
	best := "general"
	bestScore := 0
	bestBase := ImportanceLow
	var bestIndicators []string

	for _, wp := range c.rules.WorkPatterns {
		score := 0
		var indicators []string
		for _, ind := range wp.Indicators {
			if strings.Contains(lower, strings.ToLower(ind)) {
				score += 2
				indicators = append(indicators, ind)
			}
		}
		for _, step := range wp.Sequence {
			if strings.Contains(lower, strings.ToLower(step)) {
				score++
			}
		}
		if score > bestScore {
			best = wp.Name
			bestScore = score
			bestBase = wp.BaseImportance
			bestIndicators = indicators
		}
	}

	return best, bestBase, bestIndicators
}

// classifyComplexity accumulates the four independent complexity checks:
// complexity language +2, technical language +1, frustration language +2,
// length over 500 chars +1, over 1000 chars +1 more. Score >= 4 is high,
// >= 2 medium, otherwise low.
func (c *Classifier) classifyComplexity(text, lower string) Complexity {
	score := 0
	if matchesAny(c.complexity, lower) {
		score += 2
	}
	if matchesAny(c.technical, lower) {
		score++
	}
	if matchesAny(c.frustration, lower) {
		score += 2
	}
	if len(text) > 500 {
		score++
	}
	if len(text) > 1000 {
		score++
	}

	switch {
	case score >= 4:
		return ComplexityHigh
	case score >= 2:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Category maps the given domain to its configured memory category, falling
// back to "general".
func (c *Classifier) Category(domain string) string {
	if cat, ok := c.rules.Categories[domain]; ok {
		return cat
	}
	return "general"
}
