package config

import (
	"errors"
	"fmt"
	"strings"
)

var validQualities = map[string]struct{}{
	"low":    {},
	"medium": {},
	"high":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateIntegrity(); err != nil {
		return err
	}
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.PublishStepDelay < 0 {
		return errors.New("workflow.publish_step_delay must not be negative")
	}
	return nil
}

func (c *Config) validateIntegrity() error {
	if strings.TrimSpace(c.Integrity.SigningSecret) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipforge/config.toml"
		}
		return fmt.Errorf("integrity.signing_secret is required. Set CLIPFORGE_SIGNING_SECRET env var or edit %s (create with 'clipforge config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateObjectStore() error {
	if !c.ObjectStore.Enabled {
		return nil
	}
	if strings.TrimSpace(c.ObjectStore.Endpoint) == "" {
		return errors.New("object_store.endpoint must be set when object_store is enabled")
	}
	if strings.TrimSpace(c.ObjectStore.Bucket) == "" {
		return errors.New("object_store.bucket must be set when object_store is enabled")
	}
	if c.ObjectStore.RequestTimeout <= 0 {
		return errors.New("object_store.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateQuality() error {
	for field, value := range map[string]string{
		"quality.audio": c.Quality.Audio,
		"quality.video": c.Quality.Video,
	} {
		if _, ok := validQualities[strings.ToLower(strings.TrimSpace(value))]; !ok {
			return fmt.Errorf("%s must be one of low, medium, high", field)
		}
	}
	return nil
}
