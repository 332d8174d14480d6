package config

import (
	"github.com/michalshavit1/salto/service"
)

const (
	EnvPrefix         = "salto"
	DefaultConfigPath = "~/.salto/config.yaml"
)

// Config is the full adapter configuration: one service connection, the
// schema tables to map with, and the resolution annotations. File values are
// overridable through SALTO_* environment variables.
type Config struct {
	// Adapter names the service flavor; it prefixes every element identifier.
	Adapter string `yaml:"adapter" envconfig:"ADAPTER"`

	// SchemaFile points at the yaml document holding the resource tables.
	SchemaFile string `yaml:"schemaFile" envconfig:"SCHEMA_FILE"`

	Service service.Config `yaml:"service"`
	Fetch   FetchConfig    `yaml:"fetch,omitempty"`
	Resolve ResolveConfig  `yaml:"resolve,omitempty"`
	Deploy  DeployConfig   `yaml:"deploy,omitempty"`

	// Verbosity raises the log level; 0 is production logging.
	Verbosity int `yaml:"verbosity,omitempty" envconfig:"VERBOSITY"`
}

type FetchConfig struct {
	// Kinds narrows default fetches to the named resource kinds; empty means
	// every listable kind.
	Kinds []string `yaml:"kinds,omitempty"`
}

type ResolveConfig struct {
	TypeAnnotations  []TypeAnnotationConfig  `yaml:"typeAnnotations,omitempty"`
	FieldAnnotations []FieldAnnotationConfig `yaml:"fieldAnnotations,omitempty"`
	// GenericKind is the fallback kind tried when a type annotation's
	// declared kind has no match.
	GenericKind string `yaml:"genericKind,omitempty" envconfig:"GENERIC_KIND"`
}

type TypeAnnotationConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

type FieldAnnotationConfig struct {
	Name       string `yaml:"name"`
	TargetKind string `yaml:"targetKind"`
}

type DeployConfig struct {
	// Concurrency caps in-flight deploy requests; zero means the default.
	Concurrency int `yaml:"concurrency,omitempty" envconfig:"DEPLOY_CONCURRENCY"`
}
