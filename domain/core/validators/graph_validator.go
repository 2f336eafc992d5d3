package validators

import (
	"fmt"

	"storyloom-backend/domain/config"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/pkg/errors"
)

// GraphValidator validates story-graph-level domain rules. Findings are
// split into errors (the graph is unusable) and warnings (authoring
// mistakes the editor should surface but tolerate).
type GraphValidator struct {
	cfg *config.DomainConfig
}

// NewGraphValidator creates a graph validator with default rules
func NewGraphValidator() *GraphValidator {
	return NewGraphValidatorWithConfig(config.DefaultDomainConfig())
}

// NewGraphValidatorWithConfig creates a graph validator against a
// specific configuration
func NewGraphValidatorWithConfig(cfg *config.DomainConfig) *GraphValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GraphValidator{cfg: cfg}
}

// Report holds the outcome of a graph validation pass
type Report struct {
	Warnings []string
}

// HasWarnings returns true if the report carries warnings
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// ValidateGraph checks a story graph's structural rules. A returned
// error means the graph cannot be used; warnings in the report describe
// tolerated problems such as dangling choice targets.
func (v *GraphValidator) ValidateGraph(graph *aggregates.StoryGraph) (*Report, error) {
	if graph == nil {
		return nil, errors.NewValidationError("graph cannot be nil")
	}

	report := &Report{}

	if graph.NodeCount() == 0 {
		return report, errors.NewMappingError("story has no enumerable nodes")
	}

	if graph.NodeCount() > v.cfg.MaxNodesPerStory {
		return report, errors.NewValidationError(
			fmt.Sprintf("story exceeds maximum of %d nodes", v.cfg.MaxNodesPerStory))
	}

	if _, err := graph.EntryNode(); err != nil {
		return report, err
	}

	validationErrors := errors.NewValidationErrors()

	for _, node := range graph.Nodes() {
		choices := node.Choices()

		if len(choices) > v.cfg.MaxChoicesPerNode {
			validationErrors.Add(node.Key().String(),
				fmt.Sprintf("node has %d choices, maximum is %d", len(choices), v.cfg.MaxChoicesPerNode))
		}

		if node.IsEnding() && len(choices) > 0 {
			validationErrors.Add(node.Key().String(), "ending node has outgoing choices")
		}

		if !v.cfg.AllowSelfChoices {
			for _, choice := range choices {
				if choice.Target.Equals(node.Key()) {
					validationErrors.Add(node.Key().String(), "self-referencing choice not allowed")
				}
			}
		}
	}

	if validationErrors.HasErrors() {
		return report, validationErrors
	}

	for _, target := range graph.DanglingTargets() {
		warning := fmt.Sprintf("choice target %q does not resolve to a node", target.String())
		if !v.cfg.AllowDanglingTargets {
			return report, errors.NewValidationError(warning)
		}
		report.Warnings = append(report.Warnings, warning)
	}

	return report, nil
}
