// Command orchestrator takes a topology document, validates it, stands up
// the generic-service fleet it describes via the container runtime, drives
// load at its entry points, and tears the fleet down on an interrupt signal.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"toposim/orchestrator"
	"toposim/topology"
	"toposim/validate"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	addr := flag.String("addr", "127.0.0.1:9090", "orchestrator control address")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Error().Msg("usage: orchestrator <topology-path>")
		os.Exit(1)
	}
	topologyPath := flag.Arg(0)

	data, err := os.ReadFile(topologyPath)
	if err != nil {
		log.Error().Err(err).Str("path", topologyPath).Msg("failed to read topology")
		os.Exit(1)
	}

	top, err := topology.Decode(data, topology.DetectFormat(topologyPath))
	if err != nil {
		log.Error().Err(err).Msg("failed to parse topology")
		os.Exit(1)
	}

	if err := validate.Validate(top); err != nil {
		log.Error().Err(err).Msg("topology failed validation")
		os.Exit(1)
	}

	log.Info().Str("control_addr", *addr).Str("topology", topologyPath).Msg("starting orchestrator")

	if err := orchestrator.Deploy(top, "."); err != nil {
		log.Error().Err(err).Msg("deployment failed")
		os.Exit(1)
	}
}
