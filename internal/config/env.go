package config

// Environment variable keys.
//
//nolint:gosec // Keys, not credentials.
const (
	// Slack (bot token plus an app token or a signing secret)
	EnvSlackBotToken      = "SLACK_BOT_TOKEN"
	EnvSlackAppToken      = "SLACK_APP_TOKEN"
	EnvSlackSigningSecret = "SLACK_SIGNING_SECRET"

	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir = "DATA_DIR"

	// Dispatch
	EnvEventTimeout    = "BOT_EVENT_TIMEOUT"
	EnvUserRateBurst   = "BOT_USER_RATE_BURST"
	EnvUserRateRefill  = "BOT_USER_RATE_REFILL"
	EnvLLMRateBurst    = "BOT_LLM_RATE_BURST"
	EnvLLMRateRefill   = "BOT_LLM_RATE_REFILL"
	EnvLLMRateDaily    = "BOT_LLM_RATE_DAILY"
	EnvHistoryLimit    = "BOT_HISTORY_LIMIT"
	EnvPendingTTL      = "BOT_PENDING_TTL"
	EnvPendingSchedule = "BOT_PENDING_SWEEP_SCHEDULE"

	// Conversational fallback
	EnvLLMProviders    = "LLM_PROVIDERS"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOpenAIBaseURL   = "OPENAI_BASE_URL"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvCharacterFile   = "CHARACTER_FILE"

	// R2 snapshot
	EnvR2Enabled         = "R2_ENABLED"
	EnvR2AccountID       = "R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "R2_BUCKET_NAME"
	EnvR2Endpoint        = "R2_ENDPOINT"
	EnvR2SnapshotKey     = "R2_SNAPSHOT_KEY"
	EnvR2StateKey        = "R2_STATE_KEY"
	EnvSnapshotSchedule  = "SNAPSHOT_SCHEDULE"
	EnvSnapshotTimeout   = "SNAPSHOT_TIMEOUT"

	// Sentry
	EnvSentryDSN         = "SENTRY_DSN"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "SENTRY_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken    = "BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"

	// Metrics auth
	EnvMetricsUsername = "METRICS_USERNAME"
	EnvMetricsPassword = "METRICS_PASSWORD"
)
