package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ParseError reports a manifest that could not be read or does not match the schema.
type ParseError struct {
	Origin Origin
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Origin, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// rawStack mirrors the on-disk schema. Pointer fields distinguish missing from empty.
type rawStack struct {
	Name      *string           `toml:"name" yaml:"name"`
	DependsOn []string          `toml:"depends_on" yaml:"depends_on"`
	SecretEnv map[string]string `toml:"secret_env" yaml:"secret_env"`
	RunsOn    *[]string         `toml:"runs_on" yaml:"runs_on"`
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (Stack, error) {
	origin := Origin(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Stack{}, &ParseError{Origin: origin, Err: err}
	}
	return Parse(origin, raw)
}

// Parse decodes a manifest, picking the codec from the origin's file extension.
// Files without a YAML extension are treated as TOML.
func Parse(origin Origin, data []byte) (Stack, error) {
	var (
		raw rawStack
		err error
	)
	switch strings.ToLower(filepath.Ext(string(origin))) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &raw)
	default:
		err = decodeTOML(data, &raw)
	}
	if err != nil {
		return Stack{}, &ParseError{Origin: origin, Err: err}
	}
	st, err := raw.validate(origin)
	if err != nil {
		return Stack{}, &ParseError{Origin: origin, Err: err}
	}
	return st, nil
}

func decodeTOML(data []byte, out *rawStack) error {
	md, err := toml.Decode(string(data), out)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown field(s): %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(data []byte, out *rawStack) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty manifest")
		}
		return err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return err
		}
		return errors.New("multiple YAML documents; a manifest describes exactly one stack")
	}
	return nil
}

func (r rawStack) validate(origin Origin) (Stack, error) {
	if r.Name == nil {
		return Stack{}, errors.New("missing required field name")
	}
	if strings.TrimSpace(*r.Name) == "" {
		return Stack{}, errors.New("name must not be empty")
	}
	if r.RunsOn == nil {
		return Stack{}, errors.New("missing required field runs_on")
	}
	for i, dep := range r.DependsOn {
		if strings.TrimSpace(dep) == "" {
			return Stack{}, fmt.Errorf("depends_on[%d] must not be empty", i)
		}
	}
	for k := range r.SecretEnv {
		if strings.TrimSpace(k) == "" {
			return Stack{}, errors.New("secret_env keys must not be empty")
		}
	}

	st := Stack{
		Name:      *r.Name,
		DependsOn: append([]string(nil), r.DependsOn...),
		SecretEnv: make(map[string]string, len(r.SecretEnv)),
		RunsOn:    append([]string(nil), (*r.RunsOn)...),
		Origin:    origin,
	}
	for k, v := range r.SecretEnv {
		st.SecretEnv[k] = v
	}
	return st, nil
}
