// Package auto attaches a gcquake agent when it is imported, configured by
// the GCQUAKE_OPTIONS environment variable (or a .env file in the working
// directory):
//
//	import _ "github.com/kyungseok-lee/go-gcquake/pkg/gcquake/auto"
//
// Nothing is attached when the variable is unset. A malformed option string
// panics during initialization so the process never runs with undefined
// thresholds. Metrics are registered with the default Prometheus registry.
package auto

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kyungseok-lee/go-gcquake/pkg/gcquake"
)

// Agent is the agent attached at init, or nil.
var Agent *gcquake.Agent

func init() {
	agent, err := attach(prometheus.DefaultRegisterer)
	if err != nil {
		panic(fmt.Sprintf("gcquake: %v", err))
	}
	Agent = agent
}

func attach(registry prometheus.Registerer) (*gcquake.Agent, error) {
	logger, err := gcquake.NewLogger()
	if err != nil {
		logger = zap.NewNop()
	}
	return gcquake.AttachFromEnv(
		gcquake.WithLogger(logger),
		gcquake.WithRegistry(registry))
}
