package orchestrator

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"

	"toposim/client"
	"toposim/codec"
	"toposim/topology"
)

// Deploy materialises a validated topology, brings the fleet up, runs the
// load generator against its entry points until an interrupt signal
// arrives, then tears the fleet down. Tear-down runs even when bring-up
// itself failed partway, mirroring the scoped acquisition the deployment
// driver is responsible for.
func Deploy(top *topology.Topology, workDir string) error {
	names := make([]string, 0, len(top.Services))
	for name := range top.Services {
		names = append(names, name)
	}

	ports, err := NewPortAllocator().AssignAll(names)
	if err != nil {
		return err
	}

	if _, err := WriteFleetConfig(top, ports, workDir); err != nil {
		return err
	}

	composePath, err := WriteCompose(top, ports, workDir)
	if err != nil {
		return err
	}

	driver := NewDriver(composePath)
	defer func() {
		if err := driver.Down(); err != nil {
			log.Error().Err(err).Msg("tear-down failed")
		}
	}()
	if err := driver.Up(); err != nil {
		return err
	}

	log.Info().Int("services", len(names)).Msg("fleet is up")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if top.Load != nil && len(top.Load.EntryPoints) > 0 {
		resolver := hostPortResolver(ports)
		pool := client.NewPool(resolver, codec.CodecTypeJSON)
		gen := NewLoadGenerator(pool)
		log.Info().Int("entry_points", len(top.Load.EntryPoints)).Msg("starting load generator")
		go gen.Run(ctx, top.Load.EntryPoints)
	}

	<-ctx.Done()
	log.Info().Msg("received termination signal, tearing down")
	return nil
}

// hostPortResolver builds a client.Resolver that reaches the fleet through
// the host-published ports assigned by the materialiser, for use by the
// orchestrator process itself (which sits outside the container network the
// fleet's own intra-topology calls use).
func hostPortResolver(ports map[string]int) client.Resolver {
	return func(serviceName string) (string, error) {
		port, ok := ports[serviceName]
		if !ok {
			return "", fmt.Errorf("unknown service %q", serviceName)
		}
		return net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), nil
	}
}
