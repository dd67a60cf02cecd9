package audit

import (
	"regexp"

	"github.com/upb/llm-orchestrator/models"
)

// SecretType names a kind of credential the redactor recognizes
type SecretType string

const (
	SecretTypeAnthropicKey SecretType = "anthropic_key"
	SecretTypeOpenAIKey    SecretType = "openai_key"
	SecretTypeGCPKey       SecretType = "gcp_key"
	SecretTypeAWSKey       SecretType = "aws_key"
	SecretTypeGitHubToken  SecretType = "github_token"
	SecretTypeSlackToken   SecretType = "slack_token"
	SecretTypeStripeKey    SecretType = "stripe_key"
	SecretTypeJWT          SecretType = "jwt"
	SecretTypePrivateKey   SecretType = "private_key"
	SecretTypeDatabaseURL  SecretType = "database_url"
	SecretTypeBearer       SecretType = "bearer_token"
	SecretTypeAssignment   SecretType = "credential"
)

// secretPattern replaces every match of re with replacement (regexp template syntax)
type secretPattern struct {
	kind        SecretType
	re          *regexp.Regexp
	replacement string
}

// Order matters: specific prefixes run before the generic ones that would also match them.
var defaultSecretPatterns = []secretPattern{
	{SecretTypePrivateKey, regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?(?:-----END [A-Z ]*PRIVATE KEY-----|$)`), "[REDACTED_PRIVATE_KEY]"},
	{SecretTypeAnthropicKey, regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}`), "[REDACTED_ANTHROPIC_KEY]"},
	{SecretTypeStripeKey, regexp.MustCompile(`\b(?:sk|rk)_(?:live|test)_[0-9A-Za-z]{16,}\b`), "[REDACTED_STRIPE_KEY]"},
	{SecretTypeOpenAIKey, regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_\-]{20,}`), "[REDACTED_OPENAI_KEY]"},
	{SecretTypeGCPKey, regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`), "[REDACTED_GCP_KEY]"},
	{SecretTypeAWSKey, regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), "[REDACTED_AWS_KEY]"},
	{SecretTypeGitHubToken, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`), "[REDACTED_GITHUB_TOKEN]"},
	{SecretTypeSlackToken, regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9\-]{10,}`), "[REDACTED_SLACK_TOKEN]"},
	{SecretTypeJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`), "[REDACTED_JWT]"},
	{SecretTypeDatabaseURL, regexp.MustCompile(`(?i)\b((?:postgres|postgresql|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s:/@]+:)[^\s@]+@`), "${1}[REDACTED]@"},
	{SecretTypeBearer, regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9_\-\.=+/]{20,}`), "${1}[REDACTED_TOKEN]"},
	{SecretTypeAssignment, regexp.MustCompile(`(?i)\b((?:api[_\-]?key|password|passwd|pwd|secret|access[_\-]?token|auth[_\-]?token)["']?\s*[:=]\s*["']?)[^\s"',;]{8,}`), "${1}[REDACTED]"},
}

// Redactor masks credentials in text recorded to execution logs
type Redactor struct {
	patterns []secretPattern
}

// NewRedactor returns a redactor with the built-in credential patterns
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultSecretPatterns}
}

// Detect returns the kinds of secret present in text, in pattern order
func (r *Redactor) Detect(text string) []SecretType {
	var kinds []SecretType
	for _, p := range r.patterns {
		if p.re.MatchString(text) {
			kinds = append(kinds, p.kind)
			text = p.re.ReplaceAllString(text, p.replacement)
		}
	}
	return kinds
}

// String masks every credential in text
func (r *Redactor) String(text string) string {
	for _, p := range r.patterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}

// Map returns a copy of m with every string leaf masked
func (r *Redactor) Map(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = r.value(v)
	}
	return out
}

func (r *Redactor) value(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return r.String(t)
	case map[string]interface{}:
		return r.Map(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = r.value(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = r.String(item)
		}
		return out
	default:
		return v
	}
}

// Entry returns a copy of the log entry with its data maps and failure reason masked
func (r *Redactor) Entry(entry *models.ExecutionLog) *models.ExecutionLog {
	out := *entry
	out.RequestData = r.Map(entry.RequestData)
	out.ResponseData = r.Map(entry.ResponseData)
	out.Metadata = r.Map(entry.Metadata)
	if entry.FailedReason != nil {
		reason := r.String(*entry.FailedReason)
		out.FailedReason = &reason
	}
	return &out
}
