package models

// TemplateType is the tagged shape of a LearnedPattern.
type TemplateType string

const (
	TemplateRESTResource TemplateType = "rest-resource"
	TemplateQueryAPI     TemplateType = "query-api"
	TemplateRSSFeed      TemplateType = "rss-feed"
	TemplateRESTListing  TemplateType = "rest-listing"
	TemplateGraphQL      TemplateType = "graphql"
	TemplateOpenAPI      TemplateType = "openapi"
	TemplateCustom       TemplateType = "custom"
)

// ResponseFormat is the wire format a LearnedPattern expects back.
type ResponseFormat string

const (
	FormatJSON ResponseFormat = "json"
	FormatXML  ResponseFormat = "xml"
	FormatText ResponseFormat = "text"
	FormatHTML ResponseFormat = "html"
)

// ExtractorSource names where a VariableExtractor reads its input from.
type ExtractorSource string

const (
	SourcePath   ExtractorSource = "path"
	SourceQuery  ExtractorSource = "query"
	SourceHost   ExtractorSource = "host"
	SourceHash   ExtractorSource = "hash"
	SourceHeader ExtractorSource = "header"
	SourceBody   ExtractorSource = "body"
)

// ExtractorTransform is applied to the raw regex match before use.
type ExtractorTransform string

const (
	TransformNone       ExtractorTransform = "none"
	TransformLowercase  ExtractorTransform = "lowercase"
	TransformUppercase  ExtractorTransform = "uppercase"
	TransformURLEncode  ExtractorTransform = "urlencode"
	TransformURLDecode  ExtractorTransform = "urldecode"
)

// VariableExtractor pulls one named value out of a candidate URL or response.
type VariableExtractor struct {
	Name      string             `json:"name" yaml:"name"`
	Source    ExtractorSource    `json:"source" yaml:"source"`
	Pattern   string             `json:"pattern" yaml:"pattern"`
	Group     int                `json:"group,omitempty" yaml:"group,omitempty"`
	Transform ExtractorTransform `json:"transform,omitempty" yaml:"transform,omitempty"`
	// HeaderName is only meaningful when Source == SourceHeader.
	HeaderName string `json:"headerName,omitempty" yaml:"headerName,omitempty"`
}

// ContentMapping maps dotted response paths onto the three canonical fields.
type ContentMapping struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Body        string `json:"body,omitempty" yaml:"body,omitempty"`
}

// PatternValidation defines the acceptance bar for an applied pattern.
type PatternValidation struct {
	RequiredFields   []string `json:"requiredFields,omitempty" yaml:"requiredFields,omitempty"`
	MinContentLength int      `json:"minContentLength,omitempty" yaml:"minContentLength,omitempty"`
}

// PatternMetrics tracks the running reliability of a LearnedPattern.
type PatternMetrics struct {
	SuccessCount  int      `json:"successCount" yaml:"successCount"`
	FailureCount  int      `json:"failureCount" yaml:"failureCount"`
	// RawConfidence is the undecayed success-ratio confidence as of the last
	// RecordSuccess/RecordFailure call. DecayConfidence always recomputes
	// Confidence from this value, never from its own prior output.
	RawConfidence float64  `json:"rawConfidence" yaml:"rawConfidence"`
	Confidence    float64  `json:"confidence" yaml:"confidence"`
	Domains       []string `json:"domains,omitempty" yaml:"domains,omitempty"`
	LastSuccess   int64    `json:"lastSuccess,omitempty" yaml:"lastSuccess,omitempty"`
	AvgResponseMs float64  `json:"avgResponseMs,omitempty" yaml:"avgResponseMs,omitempty"`
}

// LearnedPattern is a generalized, replayable recipe for a family of URLs.
type LearnedPattern struct {
	ID              string             `json:"id" yaml:"id"`
	Tenant          string             `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	TemplateType    TemplateType       `json:"templateType" yaml:"templateType"`
	URLPatterns     []string           `json:"urlPatterns" yaml:"urlPatterns"`
	EndpointTemplate string            `json:"endpointTemplate" yaml:"endpointTemplate"`
	Extractors      []VariableExtractor `json:"extractors,omitempty" yaml:"extractors,omitempty"`
	Method          string             `json:"method" yaml:"method"`
	Headers         map[string]string  `json:"headers,omitempty" yaml:"headers,omitempty"`
	ResponseFormat  ResponseFormat     `json:"responseFormat" yaml:"responseFormat"`
	ContentMapping  ContentMapping     `json:"contentMapping" yaml:"contentMapping"`
	Validation      PatternValidation  `json:"validation" yaml:"validation"`
	Metrics         PatternMetrics     `json:"metrics" yaml:"metrics"`
	CreatedAt       int64              `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       int64              `json:"updatedAt" yaml:"updatedAt"`
}

// RecommendedAction is what an AntiPattern tells the orchestrator to do.
type RecommendedAction string

const (
	ActionNone        RecommendedAction = "none"
	ActionRetry       RecommendedAction = "retry"
	ActionBackoff     RecommendedAction = "backoff"
	ActionSkipDomain  RecommendedAction = "skip_domain"
	ActionIncreaseTimeout RecommendedAction = "increase_timeout"
)

// FailureCategory is the closed vocabulary from spec.md §7.
type FailureCategory string

const (
	CategoryRateLimited    FailureCategory = "rate_limited"
	CategoryAuthRequired   FailureCategory = "auth_required"
	CategoryWrongEndpoint  FailureCategory = "wrong_endpoint"
	CategoryServerError    FailureCategory = "server_error"
	CategoryTimeout        FailureCategory = "timeout"
	CategoryParseError     FailureCategory = "parse_error"
	CategorySchemaMismatch FailureCategory = "schema_mismatch"
	CategoryEmpty          FailureCategory = "empty"
	CategoryBlocked        FailureCategory = "blocked"
	CategoryCancelled      FailureCategory = "cancelled"
	CategoryUnknown        FailureCategory = "unknown"
)

// FailureRecord is one observed failure of a strategy/pattern against a URL.
type FailureRecord struct {
	ID             string          `json:"id" yaml:"id"`
	Tenant         string          `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	// PatternID, when set, identifies the LearnedPattern this failure is
	// attributed to so RecordFailure can increment its Metrics.FailureCount.
	PatternID      string          `json:"patternId,omitempty" yaml:"patternId,omitempty"`
	Domain         string          `json:"domain" yaml:"domain"`
	URL            string          `json:"url" yaml:"url"`
	APIURL         string          `json:"apiUrl,omitempty" yaml:"apiUrl,omitempty"`
	Category       FailureCategory `json:"category" yaml:"category"`
	StatusCode     int             `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Reason         string          `json:"reason" yaml:"reason"`
	Timestamp      int64           `json:"timestamp" yaml:"timestamp"`
	ResponseTimeMs int64           `json:"responseTimeMs,omitempty" yaml:"responseTimeMs,omitempty"`
}

// AntiPattern is a domain-scoped suppression rule derived from clustered failures.
type AntiPattern struct {
	ID                   string            `json:"id" yaml:"id"`
	Tenant               string            `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	FailureCategory      FailureCategory   `json:"failureCategory" yaml:"failureCategory"`
	Domains              []string          `json:"domains" yaml:"domains"`
	URLPatterns          []string          `json:"urlPatterns,omitempty" yaml:"urlPatterns,omitempty"`
	RecommendedAction    RecommendedAction `json:"recommendedAction" yaml:"recommendedAction"`
	Reason               string            `json:"reason" yaml:"reason"`
	SuppressionDurationMs int64            `json:"suppressionDurationMs" yaml:"suppressionDurationMs"`
	CreatedAt            int64             `json:"createdAt" yaml:"createdAt"`
	ExpiresAt            int64             `json:"expiresAt" yaml:"expiresAt"` // 0 = permanent
}

// MatchesDomain reports whether d is one of the domains this AntiPattern suppresses.
func (a *AntiPattern) MatchesDomain(d string) bool {
	for _, domain := range a.Domains {
		if domain == d {
			return true
		}
	}
	return false
}
