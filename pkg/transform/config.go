package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aleksaelezovic/sparqlgraph/pkg/graph"
	"github.com/aleksaelezovic/sparqlgraph/pkg/prefix"
)

// Settings are shared by both config flavours.
type Settings struct {
	// Prefixes are declarations in "short: long" form.
	Prefixes     []string         `json:"prefixes" yaml:"prefixes"`
	Groups       map[string]Group `json:"groups" yaml:"groups"`
	EdgeSettings EdgeSettings     `json:"edgeSettings" yaml:"edgeSettings"`
}

// Group holds the default attributes of the nodes in a group.
type Group struct {
	Properties map[string]any `json:"properties" yaml:"properties"`
}

// EdgeSettings configures edge bundling
type EdgeSettings struct {
	BundlingStrategy graph.BundlingStrategy `json:"bundlingStrategy" yaml:"bundlingStrategy"`
}

// DefaultSettings returns the settings every config starts from before
// decoding.
func DefaultSettings() Settings {
	return Settings{
		Prefixes: []string{},
		Groups:   map[string]Group{},
		EdgeSettings: EdgeSettings{
			BundlingStrategy: graph.DefaultBundlingStrategy(),
		},
	}
}

// defaults returns the default attributes of group, nil for unknown
// groups.
func (s *Settings) defaults(group string) map[string]any {
	return s.Groups[group].Properties
}

func (s *Settings) register() (*prefix.Register, error) {
	reg := prefix.NewRegister()
	if err := reg.LoadAll(s.Prefixes); err != nil {
		return nil, &ConfigError{Field: "prefixes", Err: err}
	}
	return reg, nil
}

// Positions a simple property rule can match against
const (
	KeySubject   = "subject"
	KeyPredicate = "predicate"
	KeyObject    = "object"
)

// SimpleConfig maps query variables to nodes and predicates to edges;
// triple patterns come from the query text.
type SimpleConfig struct {
	Settings `yaml:",inline"`

	// Nodes is keyed by variable name without '?'.
	Nodes map[string]SimpleNode `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges []SimpleEdge          `json:"edges" yaml:"edges" validate:"dive"`
}

// NewSimpleConfig returns an empty simple config with default settings.
func NewSimpleConfig() SimpleConfig {
	return SimpleConfig{Settings: DefaultSettings()}
}

// SimpleNode declares a variable as a node. Every key other than "group"
// (and "properties", which may hold further rules) is a property rule.
// Keys whose value is neither a string nor an object are ignored.
type SimpleNode struct {
	Group      string                  `json:"group" yaml:"group"`
	Properties map[string]PropertyRule `json:"properties" yaml:"properties" validate:"dive"`
}

// set applies one key of a node mapping. isRule reports whether the value
// has the shape of a property rule.
func (n *SimpleNode) set(name string, isRule bool, decode func(v any) error) error {
	switch name {
	case "group":
		return decode(&n.Group)
	case "properties":
		var rules map[string]PropertyRule
		if err := decode(&rules); err != nil {
			return err
		}
		for k, r := range rules {
			n.Properties[k] = r
		}
		return nil
	default:
		if !isRule {
			return nil
		}
		var rule PropertyRule
		if err := decode(&rule); err != nil {
			return fmt.Errorf("property rule %s: %w", name, err)
		}
		n.Properties[name] = rule
		return nil
	}
}

func (n *SimpleNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = SimpleNode{Properties: make(map[string]PropertyRule)}
	for name, value := range raw {
		trimmed := bytes.TrimSpace(value)
		isRule := len(trimmed) > 0 && (trimmed[0] == '"' || trimmed[0] == '{')
		if err := n.set(name, isRule, func(v any) error { return json.Unmarshal(value, v) }); err != nil {
			return err
		}
	}
	return nil
}

func (n *SimpleNode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: node mapping must be a map", value.Line)
	}
	*n = SimpleNode{Properties: make(map[string]PropertyRule)}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name, body := value.Content[i].Value, value.Content[i+1]
		isRule := body.Kind == yaml.MappingNode ||
			(body.Kind == yaml.ScalarNode && body.ShortTag() == "!!str")
		if err := n.set(name, isRule, body.Decode); err != nil {
			return err
		}
	}
	return nil
}

// PropertyRule sets a named node attribute to the object value of a
// property triple whose field at Matches.Key is the URI Matches.Value.
// A bare string is shorthand for a predicate match.
type PropertyRule struct {
	Matches Match `json:"matches" yaml:"matches"`
}

// Match compares one position of a triple against a URI
type Match struct {
	Key   string `json:"key" yaml:"key" validate:"oneof=subject predicate object"`
	Value string `json:"value" yaml:"value" validate:"required"`
}

type propertyRule PropertyRule

func (r *PropertyRule) UnmarshalJSON(data []byte) error {
	var short string
	if err := json.Unmarshal(data, &short); err == nil {
		*r = PropertyRule{Matches: Match{Key: KeyPredicate, Value: short}}
		return nil
	}
	var full propertyRule
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*r = PropertyRule(full)
	return nil
}

func (r *PropertyRule) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*r = PropertyRule{Matches: Match{Key: KeyPredicate, Value: value.Value}}
		return nil
	}
	var full propertyRule
	if err := value.Decode(&full); err != nil {
		return err
	}
	*r = PropertyRule(full)
	return nil
}

// SimpleEdge turns triples into edges when their predicate matches one of
// Matches. With Variable set, triples whose predicate is a different
// variable are skipped; constant predicates are always considered.
type SimpleEdge struct {
	Variable   string         `json:"variable" yaml:"variable"`
	Matches    []string       `json:"matches" yaml:"matches" validate:"required,min=1,dive,required"`
	Properties map[string]any `json:"properties" yaml:"properties"`
}

// VerboseConfig lists node and edge definitions explicitly.
type VerboseConfig struct {
	Settings `yaml:",inline"`

	Verbose bool          `json:"verbose" yaml:"verbose"`
	Nodes   []VerboseNode `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges   []VerboseEdge `json:"edges" yaml:"edges" validate:"dive"`
}

// NewVerboseConfig returns an empty verbose config with default settings.
func NewVerboseConfig() VerboseConfig {
	return VerboseConfig{Settings: DefaultSettings(), Verbose: true}
}

type VerboseNode struct {
	Variable   string        `json:"variable" yaml:"variable" validate:"required"`
	Group      string        `json:"group" yaml:"group"`
	Condition  *Condition    `json:"condition,omitempty" yaml:"condition,omitempty"`
	Properties []PropertyDef `json:"properties" yaml:"properties" validate:"dive"`
}

type VerboseEdge struct {
	From       string        `json:"from" yaml:"from" validate:"required"`
	To         string        `json:"to" yaml:"to" validate:"required"`
	Condition  *Condition    `json:"condition,omitempty" yaml:"condition,omitempty"`
	Properties []PropertyDef `json:"properties" yaml:"properties" validate:"dive"`
}

// PropertyDef sets Name to the value bound to Variable, or to the
// literal Value.
type PropertyDef struct {
	Name      string     `json:"name" yaml:"name" validate:"required"`
	Variable  string     `json:"variable,omitempty" yaml:"variable,omitempty" validate:"required_without=Value"`
	Value     any        `json:"value,omitempty" yaml:"value,omitempty"`
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Condition restricts a definition to rows where a bound value is in the
// registered prefix Prefix and/or matches the URI Equals. Variable
// defaults to the variable of the owning definition.
type Condition struct {
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty" validate:"required_without=Equals"`
	Equals   string `json:"equals,omitempty" yaml:"equals,omitempty" validate:"required_without=Prefix"`
}

// Config holds one config of either flavour.
type Config struct {
	Simple  *SimpleConfig
	Verbose *VerboseConfig
}

// IsVerbose reports whether the config is a VerboseConfig
func (c *Config) IsVerbose() bool {
	return c.Verbose != nil
}

type flavour struct {
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// UnmarshalJSON decodes a verbose config when "verbose" is true and a
// simple config otherwise.
func (c *Config) UnmarshalJSON(data []byte) error {
	var f flavour
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Config{}
	if f.Verbose {
		cfg := NewVerboseConfig()
		if err := json.Unmarshal(data, &cfg); err != nil {
			return err
		}
		c.Verbose = &cfg
		return nil
	}
	cfg := NewSimpleConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	c.Simple = &cfg
	return nil
}

func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var f flavour
	if err := value.Decode(&f); err != nil {
		return err
	}
	*c = Config{}
	if f.Verbose {
		cfg := NewVerboseConfig()
		if err := value.Decode(&cfg); err != nil {
			return err
		}
		c.Verbose = &cfg
		return nil
	}
	cfg := NewSimpleConfig()
	if err := value.Decode(&cfg); err != nil {
		return err
	}
	c.Simple = &cfg
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	if c.Verbose != nil {
		return json.Marshal(c.Verbose)
	}
	return json.Marshal(c.Simple)
}

// Validate checks the config held by c
func (c *Config) Validate() error {
	switch {
	case c.Verbose != nil:
		return Validate(c.Verbose)
	case c.Simple != nil:
		return Validate(c.Simple)
	default:
		return &ConfigError{Field: "config", Err: fmt.Errorf("%w: empty", ErrInvalidConfig)}
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct tags of a SimpleConfig or VerboseConfig. Every
// violation is reported as a *ConfigError wrapping ErrInvalidConfig.
func Validate(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, &ConfigError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("%w: %s", ErrInvalidConfig, describe(fe)),
		})
	}
	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "required_without":
		return fmt.Sprintf("field is required when %s is empty", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("validation failed (%s)", fe.Tag())
	}
}
