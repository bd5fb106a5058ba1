package extract

import (
	"fmt"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
	"gopkg.in/yaml.v3"
)

// Rules controls which channels and messages are extracted. Channel patterns
// use shell-style globs matched against normalized channel names.
type Rules struct {
	IncludeChannels  []string `yaml:"include_channels"`
	ExcludeChannels  []string `yaml:"exclude_channels"`
	ExcludeBots      bool     `yaml:"exclude_bots"`
	ExcludeArchived  bool     `yaml:"exclude_archived"`
	MinMessageLength int      `yaml:"min_message_length"`
	ExcludeSubtypes  []string `yaml:"exclude_subtypes"`
}

// DefaultRules returns the rules applied when no rules file is configured.
func DefaultRules() *Rules {
	return &Rules{
		ExcludeArchived: true,
	}
}

// LoadRules reads extraction rules from a YAML file.
func LoadRules(filePath string) (*Rules, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", filePath, err)
	}

	for _, pattern := range append(rules.IncludeChannels, rules.ExcludeChannels...) {
		if _, err := path.Match(pattern, "probe"); err != nil {
			return nil, fmt.Errorf("invalid channel pattern %q: %w", pattern, err)
		}
	}

	return rules, nil
}

// AllowChannel reports whether a channel should be extracted.
func (r *Rules) AllowChannel(name string, archived bool) bool {
	if r.ExcludeArchived && archived {
		return false
	}
	for _, pattern := range r.ExcludeChannels {
		if ok, _ := path.Match(pattern, name); ok {
			return false
		}
	}
	if len(r.IncludeChannels) == 0 {
		return true
	}
	for _, pattern := range r.IncludeChannels {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// AllowMessage reports whether a raw Slack message should be extracted.
func (r *Rules) AllowMessage(msg slack.Message) bool {
	if r.ExcludeBots && isBotMessage(msg) {
		return false
	}
	if msg.Text == "" && len(msg.Files) == 0 {
		return false
	}
	if r.MinMessageLength > 0 {
		length := utf8.RuneCountInString(strings.TrimSpace(msg.Text))
		if length < r.MinMessageLength {
			return false
		}
	}
	for _, subtype := range r.ExcludeSubtypes {
		if msg.SubType == subtype {
			return false
		}
	}
	return true
}

func isBotMessage(msg slack.Message) bool {
	if msg.BotID != "" {
		return true
	}
	if msg.SubType == slack.MsgSubTypeBotMessage {
		return true
	}
	if msg.SubType == slack.MsgSubTypeMessageChanged && msg.SubMessage != nil {
		return isBotMessage(slack.Message{Msg: *msg.SubMessage})
	}
	return false
}
