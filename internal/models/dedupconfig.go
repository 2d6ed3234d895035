package models

import (
	"fmt"
	"math"
)

// WeightEpsilon is the tolerance when checking that method weights sum to 1.0.
const WeightEpsilon = 1e-6

// DeduplicationConfig is the per-run configuration for a deduplication batch.
type DeduplicationConfig struct {
	// MethodWeights maps detection method to fusion weight. Must sum to 1.0
	// within WeightEpsilon.
	MethodWeights map[Method]float64 `json:"method_weights" yaml:"method_weights"`

	// SimilarityThreshold is the fused-confidence floor for a pair to become
	// a clustering edge.
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// GroupConfidenceFloor is the minimum group confidence the validator
	// accepts for consolidation.
	GroupConfidenceFloor float64 `json:"group_confidence_floor" yaml:"group_confidence_floor"`

	// MaxGroupSize bounds group membership; oversized components are split by
	// threshold tightening, never silently truncated.
	MaxGroupSize int `json:"max_group_size" yaml:"max_group_size"`

	// MaxBatchSize bounds how many candidate groups a single batch may carry.
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size"`
}

// ConfigError reports an invalid DeduplicationConfig. It is fatal for the
// run: nothing is scored before validation passes.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid deduplication config: %s: %s", e.Field, e.Reason)
}

// DefaultDeduplicationConfig returns the documented defaults.
func DefaultDeduplicationConfig() DeduplicationConfig {
	return DeduplicationConfig{
		MethodWeights: map[Method]float64{
			MethodExact:    0.3,
			MethodSemantic: 0.4,
			MethodFuzzy:    0.3,
		},
		SimilarityThreshold:  0.85,
		GroupConfidenceFloor: 0.8,
		MaxGroupSize:         10,
		MaxBatchSize:         50,
	}
}

// Validate checks the config. A non-nil result is a *ConfigError and must
// abort the run before any scoring happens.
func (c *DeduplicationConfig) Validate() error {
	if len(c.MethodWeights) == 0 {
		return &ConfigError{Field: "method_weights", Reason: "at least one method weight required"}
	}

	sum := 0.0
	for method, w := range c.MethodWeights {
		if !method.Valid() {
			return &ConfigError{Field: "method_weights", Reason: fmt.Sprintf("unknown method %q", method)}
		}
		if w < 0 {
			return &ConfigError{Field: "method_weights", Reason: fmt.Sprintf("weight for %s is negative", method)}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightEpsilon {
		return &ConfigError{Field: "method_weights", Reason: fmt.Sprintf("weights sum to %.6f, want 1.0", sum)}
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return &ConfigError{Field: "similarity_threshold", Reason: "must be in [0,1]"}
	}
	if c.GroupConfidenceFloor < 0 || c.GroupConfidenceFloor > 1 {
		return &ConfigError{Field: "group_confidence_floor", Reason: "must be in [0,1]"}
	}
	if c.MaxGroupSize < 2 {
		return &ConfigError{Field: "max_group_size", Reason: "must be at least 2"}
	}
	if c.MaxBatchSize < 1 {
		return &ConfigError{Field: "max_batch_size", Reason: "must be at least 1"}
	}
	return nil
}
