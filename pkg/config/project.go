// Package config loads and validates the two YAML files that describe an
// ApkForge project: apkforge.yaml with the build settings and pipeline, and
// keystore.yaml with the signing material. Validation runs in three phases:
// strict YAML decode, JSON Schema evaluation, then domain rules.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/All1eexx/ApkForge/pkg/paths"
	"github.com/All1eexx/ApkForge/pkg/pipeline"
)

// DefaultFileName is the project configuration file looked up in the
// project root.
const DefaultFileName = "apkforge.yaml"

// Project is the parsed apkforge.yaml.
type Project struct {
	VersionCode   int    `yaml:"version_code" json:"version_code" jsonschema:"required,minimum=1"`
	VersionName   string `yaml:"version_name" json:"version_name" jsonschema:"required,minLength=1"`
	AppName       string `yaml:"app_name" json:"app_name" jsonschema:"required,minLength=1"`
	ApplicationID string `yaml:"application_id" json:"application_id" jsonschema:"required,minLength=1"`
	BuildType     string `yaml:"build_type,omitempty" json:"build_type,omitempty" jsonschema:"enum=debug,enum=release"`

	Pipeline []string        `yaml:"pipeline" json:"pipeline" jsonschema:"required,minItems=1"`
	Behavior pipeline.Policy `yaml:"pipeline_behavior,omitempty" json:"pipeline_behavior,omitempty"`

	DebugPipeline      bool `yaml:"debug_pipeline,omitempty" json:"debug_pipeline,omitempty"`
	SavePipelineReport bool `yaml:"save_pipeline_report,omitempty" json:"save_pipeline_report,omitempty"`

	SkipFiles []string     `yaml:"skip_files,omitempty" json:"skip_files,omitempty"`
	Paths     paths.Layout `yaml:"paths,omitempty" json:"paths,omitempty"`
}

// Load reads and strictly decodes a project configuration. Unknown keys
// are rejected so typos fail loudly instead of silently defaulting.
func Load(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s not found at %s; create it in the project root", DefaultFileName, path)
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (*Project, error) {
	p := &Project{Behavior: pipeline.DefaultPolicy()}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("configuration file is empty")
		}
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if p.BuildType == "" {
		p.BuildType = "release"
	}
	if p.Behavior.TimeoutSeconds <= 0 {
		p.Behavior.TimeoutSeconds = pipeline.DefaultPolicy().TimeoutSeconds
	}
	applyEnvOverrides(p)
	return p, nil
}

// applyEnvOverrides lets CI tweak names without editing the file.
func applyEnvOverrides(p *Project) {
	if v := os.Getenv("APKFORGE_APP_NAME"); v != "" {
		p.AppName = v
	}
	if v := os.Getenv("APKFORGE_VERSION_NAME"); v != "" {
		p.VersionName = v
	}
	if v := os.Getenv("APKFORGE_APPLICATION_ID"); v != "" {
		p.ApplicationID = v
	}
}

// validateDomain applies the rules the schema cannot express.
func (p *Project) validateDomain() []*ValidationError {
	var errs []*ValidationError
	add := func(path, format string, args ...any) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"})
	}

	if p.VersionCode < 1 {
		add("version_code", "must be a positive integer, got %d", p.VersionCode)
	}
	if !validApplicationID(p.ApplicationID) {
		add("application_id", "%q is not a valid application id (want dotted segments like com.example.app)", p.ApplicationID)
	}
	if len(p.Pipeline) == 0 {
		add("pipeline", "at least one step is required")
	}
	for i, raw := range p.Pipeline {
		name, argText, hasArgs, err := pipeline.SplitDescriptor(raw)
		if err != nil {
			add(fmt.Sprintf("pipeline[%d]", i), "%v", err)
			continue
		}
		if hasArgs {
			if _, _, err := pipeline.ParseArgs(argText); err != nil {
				add(fmt.Sprintf("pipeline[%d]", i), "%v", err)
			}
		}
		if strings.Count(name, ".") > 2 {
			add(fmt.Sprintf("pipeline[%d]", i), "too many dots in %q", name)
		}
	}
	return errs
}

// validApplicationID accepts two or more dot separated Java identifiers.
func validApplicationID(id string) bool {
	segments := strings.Split(id, ".")
	if len(segments) < 2 {
		return false
	}
	for _, seg := range segments {
		if seg == "" {
			return false
		}
		for i, r := range seg {
			alpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
			digit := r >= '0' && r <= '9'
			if i == 0 && !alpha {
				return false
			}
			if !alpha && !digit {
				return false
			}
		}
	}
	return true
}
