package redact

// DefaultRules returns the default PII and credential detection rules
// applied to incident message text.
func DefaultRules() []Rule {
	return []Rule{
		// Personal identifiers
		{
			ID:          "email-address",
			Description: "Email address",
			Pattern:     `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`,
			Severity:    "high",
		},
		{
			ID:          "phone-number",
			Description: "Phone number",
			Pattern:     `\+?\d{1,3}[-.\s]?\(?\d{2,3}\)?[-.\s]?\d{3}[-.\s]?\d{2,4}[-.\s]?\d{0,4}`,
			Keywords:    []string{"phone", "tel", "call", "mobile", "+"},
			Severity:    "medium",
		},
		{
			ID:          "ipv4-address",
			Description: "IPv4 address",
			Pattern:     `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
			Severity:    "medium",
		},
		{
			ID:          "ssn",
			Description: "US Social Security Number",
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Keywords:    []string{"ssn", "social"},
			Severity:    "high",
		},

		// Credentials
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `(?i)(A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
			Keywords:    []string{"aws", "akia", "asia"},
			Severity:    "high",
		},
		{
			ID:          "generic-api-key",
			Description: "Generic API key",
			Pattern:     `(?i)(?:api[_-]?key|apikey|token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords:    []string{"api", "key", "token"},
			Severity:    "high",
		},
		{
			ID:          "generic-secret",
			Description: "Generic secret or password assignment",
			Pattern:     `(?i)(?:secret|password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords:    []string{"secret", "password", "passwd", "pwd"},
			Severity:    "high",
		},
		{
			ID:          "bearer-token",
			Description: "HTTP bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9\-._~+/]{16,}=*`,
			Keywords:    []string{"bearer"},
			Severity:    "high",
		},
		{
			ID:          "private-key",
			Description: "Private key block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
			Severity:    "high",
		},
	}
}
