package sentinel

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/palantir/stacktrace"
	"gopkg.in/yaml.v3"
)

// ParameterValue wraps a single deployment parameter in the shape the
// deployment API expects.
type ParameterValue struct {
	Value interface{} `json:"value"`
}

// Parameters is the opaque name/value set passed through to a deployment.
type Parameters map[string]ParameterValue

// LoadParameters reads a parameter file from disk.  Both the ARM parameter
// file shape ({"parameters": {name: {"value": ...}}}) and a flat
// {name: value} document are accepted, in JSON or YAML.
func LoadParameters(path string) (Parameters, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, stacktrace.Propagate(err, "failed to read parameter file %s", path)
	}
	return ParseParameters(content, filepath.Ext(path))
}

// ParseParameters decodes parameter content.  The ext argument selects the
// decoder (".yaml"/".yml" for YAML, anything else JSON).
func ParseParameters(content []byte, ext string) (Parameters, error) {
	var raw map[string]interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, stacktrace.Propagate(ErrorInvalidContent{Content: content, ParseError: err}, "failed to parse parameters as YAML")
		}
	default:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, stacktrace.Propagate(ErrorInvalidContent{Content: content, ParseError: err}, "failed to parse parameters as JSON")
		}
	}

	// ARM parameter files nest everything under a "parameters" key.
	if nested, ok := raw["parameters"].(map[string]interface{}); ok {
		raw = nested
	}

	params := make(Parameters, len(raw))
	for name, value := range raw {
		// schema bookkeeping keys in ARM parameter files are not parameters
		if strings.HasPrefix(name, "$") || name == "contentVersion" {
			continue
		}
		if wrapped, ok := value.(map[string]interface{}); ok {
			if inner, ok := wrapped["value"]; ok {
				params[name] = ParameterValue{Value: inner}
				continue
			}
		}
		params[name] = ParameterValue{Value: value}
	}
	return params, nil
}
