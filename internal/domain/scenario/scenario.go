// Package scenario defines the behavior-scenario domain entity.
package scenario

import (
	"errors"
	"fmt"
	"time"
)

// Complexity grades how demanding a scenario is to execute.
type Complexity string

const (
	ComplexitySimple     Complexity = "simple"
	ComplexityModerate   Complexity = "moderate"
	ComplexityComplex    Complexity = "complex"
	ComplexityEnterprise Complexity = "enterprise"
)

// Step is one declared action within a scenario. How a step is executed
// (HTTP call, UI click, DB query) is the executor's concern, not ours.
type Step struct {
	Name     string `json:"name"`
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
	Expected string `json:"expected,omitempty"`
}

// Scenario is a registered behavior scenario from which tasks are derived.
type Scenario struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Complexity  Complexity `json:"complexity"`
	Steps       []Step     `json:"steps"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Validate checks the scenario is well-formed for registration.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return errors.New("scenario id is required")
	}
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("scenario requires at least one step")
	}
	switch s.Complexity {
	case "", ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityEnterprise:
	default:
		return fmt.Errorf("unknown complexity %q", s.Complexity)
	}
	return nil
}
