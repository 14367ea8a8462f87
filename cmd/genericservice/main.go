// Command genericservice runs one simulated service instance: it reads the
// shared fleet config artifact, assumes the identity named by SERVICE_NAME,
// and serves GetData for that identity's methods.
package main

import (
	"net"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"toposim/client"
	"toposim/codec"
	"toposim/engine"
	"toposim/middleware"
	"toposim/server"
	"toposim/topology"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		log.Fatal().Msg("SERVICE_NAME is required")
	}

	port := os.Getenv("SERVICE_PORT")
	if port == "" {
		port = "50051"
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to read fleet config")
	}

	top, err := topology.Decode(data, topology.DetectFormat(configPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to decode fleet config")
	}

	pool := client.NewPool(client.TopologyResolver(top), codec.CodecTypeJSON)

	endpoint, err := engine.NewEndpoint(top, serviceName, pool)
	if err != nil {
		log.Fatal().Err(err).Str("service", serviceName).Msg("failed to build endpoint")
	}

	svr := server.NewServer(endpoint)
	svr.Use(middleware.LoggingMiddleware())

	addr := net.JoinHostPort("0.0.0.0", port)
	log.Info().Str("service", serviceName).Str("addr", addr).Msg("listening")
	if err := svr.Serve("tcp", addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
