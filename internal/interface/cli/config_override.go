package cli

import (
	"github.com/agentfoundry/agentfactory/internal/app/config"
)

// runOverrides overlays per-invocation flag values on the loaded
// configuration; zero values defer to the wrapped Config
type runOverrides struct {
	config.Config

	modelName           string
	maxReviewIterations int
}

func (o runOverrides) ModelName() string {
	if o.modelName != "" {
		return o.modelName
	}
	return o.Config.ModelName()
}

func (o runOverrides) MaxReviewIterations() int {
	if o.maxReviewIterations > 0 {
		return o.maxReviewIterations
	}
	return o.Config.MaxReviewIterations()
}
