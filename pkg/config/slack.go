package config

// SlackConfig holds approval-channel and notification settings from YAML.
type SlackConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// TokenEnv names the environment variable carrying the bot token.
	// Defaults to "SLACK_BOT_TOKEN" if omitted.
	TokenEnv string `yaml:"token_env,omitempty"`

	// Channel is the channel ID approval requests are posted to.
	Channel string `yaml:"channel,omitempty"`

	// DashboardURL is linked from approval messages when set.
	DashboardURL string `yaml:"dashboard_url,omitempty"`
}

// IsEnabled reports whether Slack integration is switched on.
// Nil Enabled defaults to true when a channel is configured.
func (s *SlackConfig) IsEnabled() bool {
	if s == nil {
		return false
	}
	if s.Enabled != nil {
		return *s.Enabled
	}
	return s.Channel != ""
}
