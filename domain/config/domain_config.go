package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Story constraints
	MaxNodesPerStory  int
	MaxChoicesPerNode int
	MaxBodyLength     int
	MaxLabelLength    int

	// Comment constraints
	MaxCommentLength     int
	MaxCommentsPerFetch  int

	// Throttle intervals for user-triggered actions
	SaveMinInterval     time.Duration
	CommentMinInterval  time.Duration
	GenerateMinInterval time.Duration

	// Session constraints
	SessionTimeout time.Duration

	// Validation settings
	AllowEmptyBody       bool
	AllowDanglingTargets bool
	AllowSelfChoices     bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerStory:  10000,
		MaxChoicesPerNode: 20,
		MaxBodyLength:     50000,
		MaxLabelLength:    200,

		MaxCommentLength:    2000,
		MaxCommentsPerFetch: 200,

		SaveMinInterval:     2 * time.Second,
		CommentMinInterval:  time.Second,
		GenerateMinInterval: 5 * time.Second,

		SessionTimeout: 24 * time.Hour,

		// Dangling choice targets are authoring mistakes, not fatal ones:
		// they are flagged by validation and resolved to rejections at
		// navigation time
		AllowEmptyBody:       false,
		AllowDanglingTargets: true,
		AllowSelfChoices:     true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxNodesPerStory = 5000
	config.MaxBodyLength = 20000
	config.AllowEmptyBody = false

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxNodesPerStory = 100000
	config.AllowEmptyBody = true
	config.SaveMinInterval = 0
	config.CommentMinInterval = 0
	config.GenerateMinInterval = 0

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
