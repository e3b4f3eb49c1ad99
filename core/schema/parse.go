package schema

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// Definition declares a Record-backed resource in YAML.
type Definition struct {
	// Name is the singular resource name.
	Name string `yaml:"name"`

	// Path is the collection path. Defaults to the pluralized name.
	Path string `yaml:"path,omitempty"`

	Description string `yaml:"description,omitempty"`

	Attributes []AttributeDefinition `yaml:"attributes"`

	// Disable lists default store methods that answer 501.
	Disable []string `yaml:"disable,omitempty"`
}

// AttributeDefinition declares one attribute in YAML.
type AttributeDefinition struct {
	Name        string `yaml:"name"`
	Type        Type   `yaml:"type"`
	Readonly    bool   `yaml:"readonly,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Computed is an expr expression over the record's stored values.
	// It makes the attribute virtual and readonly.
	Computed string `yaml:"computed,omitempty"`
}

type definitionFile struct {
	Resources []Definition `yaml:"resources"`
}

var identifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseFile parses resource definitions from a YAML file.
func ParseFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions parses a `resources:` document and validates every entry.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	for _, def := range file.Resources {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validate resource %q: %w", def.Name, err)
		}
	}
	return file.Resources, nil
}

// Validate checks a definition without building it.
func (d Definition) Validate() error {
	var errs []string

	if !identifier.MatchString(d.Name) {
		errs = append(errs, fmt.Sprintf("resource name %q is not a valid identifier", d.Name))
	}
	if d.Path != "" && !strings.HasPrefix(d.Path, "/") {
		errs = append(errs, fmt.Sprintf("path %q must start with /", d.Path))
	}
	if len(d.Attributes) == 0 {
		errs = append(errs, "at least one attribute is required")
	}

	seen := make(map[string]bool)
	for _, a := range d.Attributes {
		if !identifier.MatchString(a.Name) {
			errs = append(errs, fmt.Sprintf("attribute name %q is not a valid identifier", a.Name))
		}
		if a.Name == IDField {
			errs = append(errs, "attribute \"id\" is implicit")
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Sprintf("attribute %q defined twice", a.Name))
		}
		seen[a.Name] = true
		if !a.Type.Valid() {
			errs = append(errs, fmt.Sprintf("attribute %q has unknown type %q", a.Name, a.Type))
		}
		if a.Computed != "" {
			if _, err := compileComputed(a.Computed); err != nil {
				errs = append(errs, fmt.Sprintf("attribute %q: %v", a.Name, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Build creates the sealed, Record-backed schema for the definition.
func (d Definition) Build() (*Schema, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s := New(d.Name, NewRecord)
	for _, a := range d.Attributes {
		opts := []Option{Describe(a.Description)}

		if a.Computed != "" {
			program, err := compileComputed(a.Computed)
			if err != nil {
				return nil, err
			}
			opts = append(opts, Virtual(), Readonly(), Get(computedGetter(program)))
		} else {
			get, set := RecordField(a.Name)
			opts = append(opts, Get(get), Set(set))
			if a.Readonly {
				opts = append(opts, Readonly())
			}
		}

		if err := s.Define(a.Name, a.Type, opts...); err != nil {
			return nil, err
		}
	}
	return s.Seal(), nil
}

func compileComputed(code string) (*vm.Program, error) {
	program, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", code, err)
	}
	return program, nil
}

func computedGetter(program *vm.Program) Getter {
	return func(obj Object) (any, error) {
		r, ok := obj.(*Record)
		if !ok {
			return nil, fmt.Errorf("computed attribute needs *Record, got %T", obj)
		}

		env := make(map[string]any, len(r.Values)+1)
		for k, v := range r.Values {
			env[k] = v
		}
		env[IDField] = r.ID

		out, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("eval: %w", err)
		}
		return out, nil
	}
}
