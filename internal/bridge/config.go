package bridge

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/taskbridge/internal/overrides"
)

// BuildConversationConfig applies entries on top of defaults. Later entries
// win over earlier ones; keys the config does not model are still carried in
// Overrides for the engine.
func BuildConversationConfig(defaults ConversationConfig, entries []overrides.Entry) (ConversationConfig, error) {
	v := viper.New()
	v.SetDefault("model", defaults.Model)
	v.SetDefault("model_provider", defaults.ModelProvider)
	v.SetDefault("cwd", defaults.Cwd)
	v.SetDefault("approval_policy", defaults.ApprovalPolicy)
	v.SetDefault("sandbox_mode", defaults.SandboxMode)

	overrides.ApplyTo(v, entries)

	var cfg ConversationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ConversationConfig{}, fmt.Errorf("build conversation config: %w", err)
	}
	cfg.Originator = defaults.Originator
	cfg.Overrides = append([]overrides.Entry(nil), entries...)
	return cfg, nil
}
