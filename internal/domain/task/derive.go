package task

import (
	"slices"

	"github.com/davrk/swarmforge/internal/domain/agent"
	"github.com/davrk/swarmforge/internal/domain/scenario"
)

// baselineCapabilities are required by every task regardless of scenario.
var baselineCapabilities = []agent.Capability{
	agent.CapEnvironmentValidation,
	agent.CapScenarioExecution,
}

// tagCapabilities maps a declared scenario tag to the capabilities it demands.
// A static table: tags not listed here add nothing.
var tagCapabilities = map[string][]agent.Capability{
	"api":         {agent.CapAPITesting},
	"ui":          {agent.CapUITesting},
	"database":    {agent.CapDatabaseTesting},
	"integration": {agent.CapIntegrationTesting},
	"performance": {agent.CapPerformanceTesting, agent.CapStressTesting},
	"security":    {agent.CapSecurityScanning, agent.CapChaosEngineering},
}

// complexityCapabilities maps scenario complexity to extra capabilities.
var complexityCapabilities = map[scenario.Complexity][]agent.Capability{
	scenario.ComplexityComplex: {agent.CapPerformanceTesting},
	scenario.ComplexityEnterprise: {
		agent.CapStressTesting,
		agent.CapPerformanceTesting,
		agent.CapSecurityScanning,
	},
}

// DerivePriority maps scenario tags and complexity to a queue priority.
// The mapping is a fixed total function: every input lands on exactly one
// priority, with no partial matches.
func DerivePriority(tags []string, c scenario.Complexity) Priority {
	switch {
	case slices.Contains(tags, "critical") || c == scenario.ComplexityEnterprise:
		return PriorityCritical
	case slices.Contains(tags, "high") || c == scenario.ComplexityComplex:
		return PriorityHigh
	case slices.Contains(tags, "medium") || c == scenario.ComplexityModerate:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// DeriveCapabilities returns the union of the baseline capabilities, the
// static tag and complexity mappings, and any caller-supplied extras.
// Deliberately declarative: nothing is inferred from free-text step contents.
func DeriveCapabilities(tags []string, c scenario.Complexity, extra []agent.Capability) []agent.Capability {
	seen := make(map[agent.Capability]struct{})
	var caps []agent.Capability
	add := func(cs []agent.Capability) {
		for _, cap := range cs {
			if _, ok := seen[cap]; ok {
				continue
			}
			seen[cap] = struct{}{}
			caps = append(caps, cap)
		}
	}

	add(baselineCapabilities)
	for _, tag := range tags {
		add(tagCapabilities[tag])
	}
	add(complexityCapabilities[c])
	add(extra)
	return caps
}
