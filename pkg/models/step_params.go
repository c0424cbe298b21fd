package models

// Typed parameter structs decoded from a step's persisted parameter bag.
// JSON numbers arrive as float64, hand-built maps may carry int or string,
// so the readers below accept all three.

// FetchEmailsParams configures the FETCH_EMAILS step.
type FetchEmailsParams struct {
	Label      string
	MaxResults int
}

// SummarizeEmailsParams configures the SUMMARIZE_EMAILS step.
type SummarizeEmailsParams struct {
	Enabled bool
	Model   string
}

// ForwardEmailsParams configures the FORWARD_EMAILS step. An empty
// Destination falls back to the owning workflow's persisted destination.
type ForwardEmailsParams struct {
	Destination     string
	DestinationType DestinationType
	IncludeSummary  bool
}

// BatchSummariesParams configures the SEND_BATCH_SUMMARIES step.
type BatchSummariesParams struct {
	Destination     string
	DestinationType DestinationType
	SenderFilter    string
	SubjectFilter   string
	MaxSummaries    int

	// InterCallDelayMs spaces consecutive summarization calls. Zero
	// disables the pause.
	InterCallDelayMs int
}

const (
	defaultFetchLabel       = "INBOX"
	defaultFetchMax         = 10
	defaultBatchSummaryMax  = 5
	defaultBatchCallDelayMs = 500
)

// DecodeFetchEmailsParams reads FETCH_EMAILS parameters, applying defaults.
func DecodeFetchEmailsParams(config map[string]any) FetchEmailsParams {
	params := FetchEmailsParams{
		Label:      stringParam(config, "label", defaultFetchLabel),
		MaxResults: intParam(config, "max_results", defaultFetchMax),
	}
	if params.MaxResults <= 0 {
		params.MaxResults = defaultFetchMax
	}

	return params
}

// DecodeSummarizeEmailsParams reads SUMMARIZE_EMAILS parameters. Summarization
// is enabled unless explicitly switched off.
func DecodeSummarizeEmailsParams(config map[string]any) SummarizeEmailsParams {
	return SummarizeEmailsParams{
		Enabled: boolParam(config, "enabled", true),
		Model:   stringParam(config, "model", ""),
	}
}

// DecodeForwardEmailsParams reads FORWARD_EMAILS parameters.
func DecodeForwardEmailsParams(config map[string]any) ForwardEmailsParams {
	return ForwardEmailsParams{
		Destination:     stringParam(config, "destination", ""),
		DestinationType: DestinationType(stringParam(config, "destination_type", "")),
		IncludeSummary:  boolParam(config, "include_summary", false),
	}
}

// DecodeBatchSummariesParams reads SEND_BATCH_SUMMARIES parameters.
func DecodeBatchSummariesParams(config map[string]any) BatchSummariesParams {
	params := BatchSummariesParams{
		Destination:     stringParam(config, "destination", ""),
		DestinationType: DestinationType(stringParam(config, "destination_type", "")),
		SenderFilter:    stringParam(config, "sender_filter", ""),
		SubjectFilter:   stringParam(config, "subject_filter", ""),
		MaxSummaries:    intParam(config, "max_summaries", defaultBatchSummaryMax),

		InterCallDelayMs: intParam(config, "inter_call_delay", defaultBatchCallDelayMs),
	}
	if params.MaxSummaries <= 0 {
		params.MaxSummaries = defaultBatchSummaryMax
	}

	if params.InterCallDelayMs < 0 {
		params.InterCallDelayMs = defaultBatchCallDelayMs
	}

	return params
}

func stringParam(config map[string]any, key, fallback string) string {
	if config == nil {
		return fallback
	}

	if value, ok := config[key].(string); ok && value != "" {
		return value
	}

	return fallback
}

func boolParam(config map[string]any, key string, fallback bool) bool {
	if config == nil {
		return fallback
	}

	switch value := config[key].(type) {
	case bool:
		return value
	case string:
		if value == "true" {
			return true
		}

		if value == "false" {
			return false
		}
	}

	return fallback
}

func intParam(config map[string]any, key string, fallback int) int {
	if config == nil {
		return fallback
	}

	switch value := config[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}

	return fallback
}
