// Package orchestrator implements the deployment materialiser, driver, and
// load generator: turning a validated topology into a running
// fleet of generic-service instances, then driving synthetic load at its
// declared entry points.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"toposim/topology"
)

const (
	containerConfigPath = "/app/config.json"
	serviceConfigsDir   = "service_configs"
	serviceConfigFile   = "config.json"
	composeFile         = "docker-compose.yml"
	bridgeNetworkName   = "toposim_net"
	genericServiceBuild = "../generic-service"
)

// fleetServiceConfig is the per-service entry of the single fleet config
// artifact mounted into every instance. ip is deliberately the service name,
// not a real address — intra-topology DNS resolution is the container
// runtime's job.
type fleetServiceConfig struct {
	IP      string                         `json:"ip"`
	Port    string                         `json:"port"`
	Methods map[string]topology.MethodSpec `json:"methods"`
}

// WriteFleetConfig renders the fleet config artifact — one document mapping
// every service name to its ip/port/methods — into dir/service_configs/config.json.
func WriteFleetConfig(top *topology.Topology, ports map[string]int, dir string) (string, error) {
	all := make(map[string]fleetServiceConfig, len(top.Services))
	for name, svc := range top.Services {
		if _, ok := ports[name]; !ok {
			return "", fmt.Errorf("no port assigned to service %q", name)
		}
		all[name] = fleetServiceConfig{
			IP:      name,
			Port:    svc.Port,
			Methods: svc.Methods,
		}
	}

	configDir := filepath.Join(dir, serviceConfigsDir)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", configDir, err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal fleet config: %w", err)
	}

	path := filepath.Join(configDir, serviceConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// composeBuild, composeService, and composeDocument mirror the subset of the
// docker-compose schema this generator actually emits.
type composeBuild struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile"`
}

type composeService struct {
	Build         composeBuild      `yaml:"build"`
	ContainerName string            `yaml:"container_name"`
	Ports         []string          `yaml:"ports"`
	Environment   map[string]string `yaml:"environment"`
	Volumes       []string          `yaml:"volumes"`
	Networks      []string          `yaml:"networks"`
}

type composeNetwork struct {
	Driver string `yaml:"driver"`
}

type composeDocument struct {
	Version  string                    `yaml:"version"`
	Services map[string]composeService `yaml:"services"`
	Networks map[string]composeNetwork `yaml:"networks"`
}

// WriteCompose renders the deployment descriptor: one service unit per
// topology service, all attached to a single shared bridge network.
// depends_on is deliberately omitted — the client pool dials lazily and the
// executor retries, so start order races are tolerated.
func WriteCompose(top *topology.Topology, ports map[string]int, dir string) (string, error) {
	doc := composeDocument{
		Version:  "3",
		Services: make(map[string]composeService, len(top.Services)),
		Networks: map[string]composeNetwork{bridgeNetworkName: {Driver: "bridge"}},
	}

	names := make([]string, 0, len(top.Services))
	for name := range top.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := top.Services[name]
		hostPort, ok := ports[name]
		if !ok {
			return "", fmt.Errorf("no port assigned to service %q", name)
		}
		containerPort := svc.Port

		hostConfigPath := fmt.Sprintf("./%s/%s", serviceConfigsDir, serviceConfigFile)

		doc.Services[name] = composeService{
			Build: composeBuild{
				Context:    genericServiceBuild,
				Dockerfile: "Dockerfile",
			},
			ContainerName: name,
			Ports:         []string{fmt.Sprintf("%d:%s", hostPort, containerPort)},
			Environment: map[string]string{
				"SERVICE_NAME": name,
				"SERVICE_PORT": containerPort,
				"CONFIG_PATH":  containerConfigPath,
			},
			Volumes:  []string{fmt.Sprintf("%s:%s", hostConfigPath, containerConfigPath)},
			Networks: []string{bridgeNetworkName},
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("marshal compose document: %w", err)
	}

	path := filepath.Join(dir, composeFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
