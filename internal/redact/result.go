package redact

import "time"

// Finding describes one detected sensitive span.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	Line        int    `json:"line"`
}

// Result holds the outcome of one transform.
type Result struct {
	// Original is the input text, unchanged.
	Original string `json:"-"`

	// Redacted is the output with all detected spans replaced.
	Redacted string `json:"-"`

	// Findings lists each detected span.
	Findings []Finding `json:"findings"`

	// ByRule counts findings per rule id.
	ByRule map[string]int `json:"by_rule"`

	// TotalFindings is the number of detected spans.
	TotalFindings int `json:"total_findings"`

	// Duration is how long the transform took.
	Duration time.Duration `json:"-"`
}
