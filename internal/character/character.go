// Package character loads the persona used for conversational replies.
package character

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Settings tune the completion request.
type Settings struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Character is a named persona.
type Character struct {
	Name         string   `yaml:"name"`
	SystemPrompt string   `yaml:"system_prompt"`
	Settings     Settings `yaml:"settings"`
}

// Parse decodes and validates a YAML character definition. Unknown fields
// are rejected so typos do not silently fall back to defaults.
func Parse(data []byte) (*Character, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Character
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode character: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks required fields and setting ranges.
func (c *Character) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("character name is required"))
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		errs = append(errs, errors.New("character system_prompt is required"))
	}
	if c.Settings.Temperature < 0 || c.Settings.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %v", c.Settings.Temperature))
	}
	if c.Settings.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens cannot be negative, got %d", c.Settings.MaxTokens))
	}
	return errors.Join(errs...)
}

// Default returns the embedded character.
func Default() *Character {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded character is invalid: %v", err))
	}
	return c
}
