package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/plugfactory/internal/ctxlog"
	"github.com/vk/plugfactory/internal/loader"
)

// hclRoot defines the top-level structure of the file, expecting a single
// 'factory' block.
type hclRoot struct {
	Factory *hclFactory `hcl:"factory,block"`
}

// hclFactory represents the 'factory' block for decoding purposes. Paths is
// kept as a raw expression so it can be evaluated against the environment.
type hclFactory struct {
	PluginIdentifier     string         `hcl:"plugin_identifier,optional"`
	VersioningIdentifier string         `hcl:"versioning_identifier,optional"`
	EnvVar               string         `hcl:"envvar,optional"`
	Mechanism            string         `hcl:"mechanism,optional"`
	Paths                hcl.Expression `hcl:"paths,optional"`
	Searches             []hclSearch    `hcl:"search,block"`
}

// hclSearch represents a 'search' block, labeled by its directory.
type hclSearch struct {
	Path      string `hcl:"path,label"`
	Mechanism string `hcl:"mechanism,optional"`
}

// Load parses a factory configuration file into the Model. Relative search
// paths are resolved against the configuration file's own directory.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading factory configuration.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, diags)
	}

	root := &hclRoot{}
	if diags := gohcl.DecodeBody(file.Body, nil, root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode configuration file %s: %w", path, diags)
	}
	if root.Factory == nil {
		return nil, fmt.Errorf("configuration file %s contains no factory block", path)
	}

	baseDir := filepath.Dir(path)
	model := &Model{
		PluginIdentifier:     root.Factory.PluginIdentifier,
		VersioningIdentifier: root.Factory.VersioningIdentifier,
		EnvVar:               root.Factory.EnvVar,
	}

	mechanism, err := loader.ParseMechanism(root.Factory.Mechanism)
	if err != nil {
		return nil, fmt.Errorf("configuration file %s: %w", path, err)
	}
	model.Mechanism = mechanism

	paths, err := evalPaths(root.Factory.Paths)
	if err != nil {
		return nil, fmt.Errorf("configuration file %s: %w", path, err)
	}
	for _, p := range paths {
		model.Paths = append(model.Paths, absolve(baseDir, p))
	}

	for _, search := range root.Factory.Searches {
		mechanism, err := loader.ParseMechanism(search.Mechanism)
		if err != nil {
			return nil, fmt.Errorf("configuration file %s, search %q: %w", path, search.Path, err)
		}
		model.Searches = append(model.Searches, Search{
			Path:      absolve(baseDir, search.Path),
			Mechanism: mechanism,
		})
	}

	logger.Debug("Factory configuration loaded.",
		"paths", len(model.Paths), "searches", len(model.Searches))
	return model, nil
}

// evalPaths evaluates the paths expression against an 'env' namespace so
// configurations can interpolate environment variables, e.g.
// paths = ["${env.HOME}/plugins"].
func evalPaths(expr hcl.Expression) ([]string, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(envEvalContext())
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to evaluate paths: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}

	listVal, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("paths must be a list of strings: %w", err)
	}

	var out []string
	for it := listVal.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		out = append(out, elem.AsString())
	}
	return out, nil
}

func envEvalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
	}
}

func absolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
