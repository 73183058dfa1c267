package main

import (
	"fmt"
	"os"
	"strings"

	"StegLab/pkg/options"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// optionFlags collects method options from --options-file and repeated --opt
// flags; --opt values win over the file
type optionFlags struct {
	file  *string
	pairs *[]string
}

func addOptionFlags(fs *pflag.FlagSet) *optionFlags {
	return &optionFlags{
		file:  fs.String("options-file", "", "YAML or JSON file with method options"),
		pairs: fs.StringArray("opt", nil, "option as key=value, repeatable; detect takes detector.key=value"),
	}
}

// load reads the options file into a generic map
func (o *optionFlags) load() (map[string]any, error) {
	out := map[string]any{}
	if *o.file == "" {
		return out, nil
	}
	raw, err := os.ReadFile(*o.file)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}
	// YAML is a superset of JSON, so one decoder serves both
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, usageErrorf("options file %s: %v", *o.file, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// methodOptions returns the flat option map for embed and extract
func (o *optionFlags) methodOptions() (options.Map, error) {
	m, err := o.load()
	if err != nil {
		return nil, err
	}
	for _, p := range *o.pairs {
		key, val, err := parsePair(p)
		if err != nil {
			return nil, err
		}
		m[key] = val
	}
	return options.Map(m), nil
}

// detectorOptions returns options keyed by detector id
func (o *optionFlags) detectorOptions() (map[string]options.Map, error) {
	m, err := o.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]options.Map, len(m))
	for det, v := range m {
		inner, ok := v.(map[string]any)
		if !ok {
			return nil, usageErrorf("options for detector %q must be a mapping", det)
		}
		out[det] = options.Map(inner)
	}
	for _, p := range *o.pairs {
		key, val, err := parsePair(p)
		if err != nil {
			return nil, err
		}
		det, field, ok := strings.Cut(key, ".")
		if !ok || det == "" || field == "" {
			return nil, usageErrorf("detect option %q must be detector.key=value", p)
		}
		if out[det] == nil {
			out[det] = options.Map{}
		}
		out[det][field] = val
	}
	return out, nil
}

// parsePair splits key=value and types the value the way YAML would, so
// --opt strength=12 yields a number and --opt flag=true a bool
func parsePair(p string) (string, any, error) {
	key, raw, ok := strings.Cut(p, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, usageErrorf("option %q must be key=value", p)
	}
	var val any
	if err := yaml.Unmarshal([]byte(raw), &val); err != nil || val == nil {
		val = raw
	}
	return key, val, nil
}
