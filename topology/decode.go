package topology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how a topology document is decoded. Decode has no file
// path to inspect, so it treats FormatAuto like FormatJSON; extension-based
// detection is done by the caller through DetectFormat.
type Format int

const (
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

// DetectFormat maps a file extension to a Format, defaulting to JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a topology document into a Topology. format selects the
// decoding path explicitly: FormatYAML decodes YAML, anything else
// (including FormatAuto) decodes JSON. Callers holding a file path pass
// DetectFormat(path).
func Decode(data []byte, format Format) (*Topology, error) {
	if format == FormatYAML {
		return decodeYAML(data)
	}
	return decodeJSON(data)
}

func decodeYAML(data []byte) (*Topology, error) {
	var top Topology
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, &ConfigParseError{Path: "$", Reason: err.Error()}
	}
	if err := requireFields(&top); err != nil {
		return nil, err
	}
	return &top, nil
}

func decodeJSON(data []byte) (*Topology, error) {
	if err := checkDuplicateKeys(data, "services"); err != nil {
		return nil, err
	}

	var raw struct {
		Services map[string]json.RawMessage `json:"services"`
		Load     *LoadSpec                  `json:"load,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigParseError{Path: "$", Reason: err.Error()}
	}

	top := Topology{
		Services: make(map[string]ServiceSpec, len(raw.Services)),
		Load:     raw.Load,
	}

	for name, svcData := range raw.Services {
		path := fmt.Sprintf("services.%s", name)
		if err := checkDuplicateKeys(svcData, "methods"); err != nil {
			return nil, &ConfigParseError{Path: path, Reason: err.Error()}
		}

		var svc ServiceSpec
		if err := json.Unmarshal(svcData, &svc); err != nil {
			return nil, &ConfigParseError{Path: path, Reason: err.Error()}
		}
		top.Services[name] = svc
	}

	if err := requireFields(&top); err != nil {
		return nil, err
	}
	return &top, nil
}

// requireFields catches the class of error the generated Go zero values
// would otherwise hide silently: a method with no latency_distribution
// kind set, or a service with no ip/port, fails with a path trail rather
// than sampling against an empty distribution at runtime.
func requireFields(top *Topology) error {
	for svcName, svc := range top.Services {
		if svc.IP == "" {
			return &ConfigParseError{Path: fmt.Sprintf("services.%s.ip", svcName), Reason: "missing required field"}
		}
		if svc.Port == "" {
			return &ConfigParseError{Path: fmt.Sprintf("services.%s.port", svcName), Reason: "missing required field"}
		}
		for methodName, method := range svc.Methods {
			path := fmt.Sprintf("services.%s.methods.%s", svcName, methodName)
			if method.LatencyDistribution.Kind == "" {
				return &ConfigParseError{Path: path + ".latency_distribution", Reason: "missing required field"}
			}
			for stageIdx, stage := range method.Calls {
				for targetIdx, target := range stage {
					if strings.Count(target, ".") != 1 {
						return &ConfigParseError{
							Path:   fmt.Sprintf("%s.calls[%d][%d]", path, stageIdx, targetIdx),
							Reason: fmt.Sprintf("call target %q must match <service>.<method>", target),
						}
					}
				}
			}
		}
	}
	return nil
}

// checkDuplicateKeys detects duplicate keys within the named object field
// of a JSON document — something encoding/json silently overwrites rather
// than rejects. Only the keys directly inside the field's object are
// checked; objects nested deeper within its values are not inspected.
func checkDuplicateKeys(data []byte, field string) error {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil // not a JSON object — let the real unmarshal surface the error
	}

	fieldData, ok := outer[field]
	if !ok {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(fieldData))
	return checkObjectDuplicates(dec, field)
}

func checkObjectDuplicates(dec *json.Decoder, context string) error {
	t, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := t.(json.Delim)
	if !ok || delim != '{' {
		return nil
	}

	seen := make(map[string]bool)
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := t.(string)
		if !ok {
			return nil
		}
		if seen[key] {
			return &ConfigParseError{Path: context, Reason: fmt.Sprintf("duplicate key %q", key)}
		}
		seen[key] = true

		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil
		}
	}
	return nil
}

// Serialise marshals a Topology back to JSON bytes, the inverse of the
// JSON decode path.
func Serialise(top *Topology) ([]byte, error) {
	return json.Marshal(top)
}
