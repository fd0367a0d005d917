package config

import (
	"fmt"
	"strings"
)

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validFormats = map[string]bool{"json": true, "text": true}
	validOutputs = map[string]bool{"stdout": true, "stderr": true}
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error (got %q)", cfg.Logging.Level))
	}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be json or text (got %q)", cfg.Logging.Format))
	}
	if !validOutputs[cfg.Logging.Output] {
		errs = append(errs, fmt.Sprintf("logging.output must be stdout or stderr (got %q)", cfg.Logging.Output))
	}

	if cfg.Webhook.MaxBodyBytes < 0 {
		errs = append(errs, "webhook.maxBodyBytes must not be negative")
	}

	if cfg.GroupMe.Enabled {
		if cfg.GroupMe.Token == "" {
			errs = append(errs, "groupme.token is required when groupme is enabled")
		}
		if cfg.GroupMe.TokenSecret == "" {
			errs = append(errs, "groupme.tokenSecret is required when groupme is enabled")
		}
		if cfg.GroupMe.Username == "" {
			errs = append(errs, "groupme.username is required when groupme is enabled")
		}
		errs = append(errs, checkAdapter("groupme", cfg.GroupMe.LogLevel, cfg.GroupMe.HTTP)...)
	}

	if cfg.WeChat.Enabled {
		if cfg.WeChat.AppID == "" {
			errs = append(errs, "wechat.appID is required when wechat is enabled")
		}
		if cfg.WeChat.AppSecret == "" {
			errs = append(errs, "wechat.appSecret is required when wechat is enabled")
		}
		// The signature gate uses the service id as its token.
		if cfg.WeChat.ServiceID == "" {
			errs = append(errs, "wechat.serviceID is required when wechat is enabled")
		}
		// Listen requires the adapter's own server.
		if cfg.WeChat.HTTP == nil {
			errs = append(errs, "wechat.http is required when wechat is enabled")
		}
		errs = append(errs, checkAdapter("wechat", cfg.WeChat.LogLevel, cfg.WeChat.HTTP)...)
	}

	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" {
			errs = append(errs, "slack.botToken is required when slack is enabled")
		}
		if cfg.Slack.SigningSecret == "" {
			errs = append(errs, "slack.signingSecret is required when slack is enabled")
		}
		errs = append(errs, checkAdapter("slack", cfg.Slack.LogLevel, cfg.Slack.HTTP)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func checkAdapter(name, level string, http *HTTPConfig) []string {
	var errs []string
	if level != "" && !validLevels[level] {
		errs = append(errs, fmt.Sprintf("%s.logLevel must be one of: debug, info, warn, error (got %q)", name, level))
	}
	if http != nil && (http.Port < 0 || http.Port > 65535) {
		errs = append(errs, fmt.Sprintf("%s.http.port must be between 0 and 65535", name))
	}
	return errs
}
