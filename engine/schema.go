package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// optionsSchema describes the embedding-configuration document shape
//. It covers the fields an embedder can
// source from ConfigYAML; Go-native fields (FS, Fetch, Sleep, Random,
// CustomCommands, Network) are not representable in JSON/YAML and are
// outside this schema's scope.
const optionsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "env": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    },
    "cwd": { "type": "string", "minLength": 1 },
    "executionLimits": {
      "type": "object",
      "properties": {
        "maxCallDepth":      { "type": "integer", "minimum": 0 },
        "maxCommandCount":   { "type": "integer", "minimum": 0 },
        "maxLoopIterations": { "type": "integer", "minimum": 0 },
        "maxAwkIterations":  { "type": "integer", "minimum": 0 },
        "maxSedIterations":  { "type": "integer", "minimum": 0 },
        "maxJqIterations":   { "type": "integer", "minimum": 0 }
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": true
}`

func compileOptionsSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "schema://engine-options.json"
	if err := compiler.AddResource(url, strings.NewReader(optionsSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// validateYAMLDoc schema-validates a ConfigYAML document before it is
// merged into Options.
func validateYAMLDoc(raw []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing ConfigYAML: %w", err)
	}
	// jsonschema validates against json.Unmarshal-produced values
	// (float64 numbers rather than yaml.v3's int), so round-trip through
	// JSON first.
	jsonBytes, err := jsonMarshalYAMLValue(doc)
	if err != nil {
		return fmt.Errorf("converting ConfigYAML to JSON: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(jsonBytes, &v); err != nil {
		return fmt.Errorf("converting ConfigYAML to JSON: %w", err)
	}

	schema, err := compileOptionsSchema()
	if err != nil {
		return fmt.Errorf("compiling options schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("ConfigYAML does not satisfy engine options schema: %w", err)
	}
	return nil
}

// jsonMarshalYAMLValue re-encodes a yaml.v3-decoded value as JSON. yaml.v3
// (unlike yaml.v2) already decodes mappings as map[string]interface{}, so
// this is a direct json.Marshal; kept as a named step so the conversion
// rationale stays documented at the call site.
func jsonMarshalYAMLValue(doc interface{}) ([]byte, error) {
	return json.Marshal(doc)
}

// validateOptions checks the parts of opts that came from Go fields
// directly (not ConfigYAML) for obvious misconfiguration the schema
// can't see, such as negative limits a caller built by hand.
func validateOptions(opts Options) error {
	for name, v := range map[string]int{
		"maxCallDepth":      opts.ExecutionLimits.MaxCallDepth,
		"maxCommandCount":   opts.ExecutionLimits.MaxCommandCount,
		"maxLoopIterations": opts.ExecutionLimits.MaxLoopIterations,
		"maxAwkIterations":  opts.ExecutionLimits.MaxAwkIterations,
		"maxSedIterations":  opts.ExecutionLimits.MaxSedIterations,
		"maxJqIterations":   opts.ExecutionLimits.MaxJqIterations,
	} {
		if v < 0 {
			return fmt.Errorf("executionLimits.%s must be >= 0, got %d", name, v)
		}
	}
	if opts.FS != nil && opts.Files != nil {
		return fmt.Errorf("Options.FS and Options.Files are mutually exclusive")
	}
	return nil
}
