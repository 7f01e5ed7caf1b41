package redact

import (
	"sort"
	"strings"
	"time"
)

// Redactor detects and removes sensitive text.
type Redactor interface {
	// Transform redacts sensitive spans from the content. It never
	// fails; a disabled redactor returns the content unchanged.
	Transform(content string) *Result

	// Check detects sensitive spans without redacting.
	Check(content string) *Result

	// IsEnabled returns whether redaction is active.
	IsEnabled() bool
}

// redactor is the default implementation using regexp rules.
type redactor struct {
	config *Config
}

// span tracks a region to redact.
type span struct {
	start, end int
	ruleID     string
}

// New creates a Redactor with the given configuration.
// If config is nil, DefaultConfig() is used.
func New(cfg *Config) (Redactor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &redactor{config: cfg}, nil
}

// MustNew creates a Redactor, panicking on error.
func MustNew(cfg *Config) Redactor {
	r, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Transform redacts sensitive spans from the content.
func (r *redactor) Transform(content string) *Result {
	start := time.Now()
	result := &Result{
		Original: content,
		Redacted: content,
		Findings: make([]Finding, 0),
		ByRule:   make(map[string]int),
	}

	if !r.config.Enabled {
		result.Duration = time.Since(start)
		return result
	}

	var spans []span
	for _, rule := range r.config.compiledRules {
		if len(rule.keywords) > 0 {
			hasKeyword := false
			for _, kw := range rule.keywords {
				if kw.MatchString(content) {
					hasKeyword = true
					break
				}
			}
			if !hasKeyword {
				continue
			}
		}

		for _, match := range rule.pattern.FindAllStringIndex(content, -1) {
			matchStr := content[match[0]:match[1]]
			if r.isAllowed(matchStr) {
				continue
			}

			line := strings.Count(content[:match[0]], "\n") + 1
			result.Findings = append(result.Findings, Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				StartIndex:  match[0],
				EndIndex:    match[1],
				Line:        line,
			})
			result.ByRule[rule.ID]++
			spans = append(spans, span{start: match[0], end: match[1], ruleID: rule.ID})
		}
	}

	result.TotalFindings = len(result.Findings)

	if len(spans) > 0 {
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		merged := mergeSpans(spans)

		// Replace back to front so earlier indices stay valid.
		redacted := content
		for i := len(merged) - 1; i >= 0; i-- {
			sp := merged[i]
			if sp.start >= 0 && sp.end <= len(redacted) && sp.start < sp.end {
				redacted = redacted[:sp.start] + r.config.RedactionString + redacted[sp.end:]
			}
		}
		result.Redacted = redacted
	}

	result.Duration = time.Since(start)
	return result
}

// Check detects sensitive spans without redacting.
func (r *redactor) Check(content string) *Result {
	result := r.Transform(content)
	result.Redacted = result.Original
	return result
}

// IsEnabled returns whether redaction is active.
func (r *redactor) IsEnabled() bool {
	return r.config.Enabled
}

func (r *redactor) isAllowed(match string) bool {
	for _, pattern := range r.config.compiledAllowList {
		if pattern.MatchString(match) {
			return true
		}
	}
	return false
}

// mergeSpans merges overlapping or adjacent spans. Input must be sorted
// by start ascending.
func mergeSpans(spans []span) []span {
	merged := []span{spans[0]}
	for i := 1; i < len(spans); i++ {
		last := &merged[len(merged)-1]
		curr := spans[i]
		if curr.start <= last.end {
			if curr.end > last.end {
				last.end = curr.end
			}
		} else {
			merged = append(merged, curr)
		}
	}
	return merged
}

// NoopRedactor passes content through unchanged (testing or disabled mode).
type NoopRedactor struct{}

// Transform returns content unchanged.
func (n *NoopRedactor) Transform(content string) *Result {
	return &Result{
		Original: content,
		Redacted: content,
		Findings: make([]Finding, 0),
		ByRule:   make(map[string]int),
	}
}

// Check returns content unchanged.
func (n *NoopRedactor) Check(content string) *Result {
	return n.Transform(content)
}

// IsEnabled returns false.
func (n *NoopRedactor) IsEnabled() bool {
	return false
}

var _ Redactor = (*redactor)(nil)
var _ Redactor = (*NoopRedactor)(nil)
