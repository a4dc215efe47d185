package schema

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
)

// baseURL is the namespace every registered document lives under, so a
// relative "$ref" resolves to another registered type name.
const baseURL = "mem://types/"

// ValidationError is one structural violation found in a value
type ValidationError struct {
	// Path is the JSON pointer of the offending part of the value
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// Registry holds compiled schemas keyed by type name
type Registry struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	schemas map[string]*jsonschema.Schema
	logger  *zap.Logger
}

// NewRegistry creates an empty schema registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		docs:    make(map[string][]byte),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger,
	}
}

// Register compiles a JSON schema document under the given type name,
// replacing any earlier document of the same name.
func (r *Registry) Register(typeName string, document []byte) error {
	return r.RegisterAll(map[string][]byte{typeName: document})
}

// RegisterAll registers several documents at once. Documents may reference
// each other regardless of order. Nothing is registered if any of the new
// documents fails to compile.
func (r *Registry) RegisterAll(documents map[string][]byte) error {
	for name := range documents {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("schema type name cannot be empty")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	merged := make(map[string][]byte, len(r.docs)+len(documents))
	for name, doc := range r.docs {
		merged[name] = doc
	}
	for name, doc := range documents {
		merged[name] = doc
	}

	compiler, err := newCompiler(merged)
	if err != nil {
		return err
	}

	compiled := make(map[string]*jsonschema.Schema, len(merged))
	for name := range documents {
		sch, err := compiler.Compile(resourceURL(name))
		if err != nil {
			return fmt.Errorf("failed to compile schema %q: %w", name, err)
		}
		compiled[name] = sch
	}

	// Recompile existing types so references to replaced documents stay current
	for name := range r.docs {
		if _, ok := compiled[name]; ok {
			continue
		}
		sch, err := compiler.Compile(resourceURL(name))
		if err != nil {
			r.logger.Warn("Keeping previous schema after failed recompilation",
				zap.String("type", name), zap.Error(err))
			compiled[name] = r.schemas[name]
			continue
		}
		compiled[name] = sch
	}

	r.docs = merged
	r.schemas = compiled

	for name := range documents {
		r.logger.Debug("Registered schema", zap.String("type", name))
	}
	return nil
}

// Has reports whether a schema is registered for the type name
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.schemas[typeName]
	return ok
}

// Types returns the registered type names in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateObject checks v against the schema registered for typeName. An
// empty result means v is valid. An unregistered type yields a single error.
func (r *Registry) ValidateObject(typeName string, v value.Value) []ValidationError {
	r.mu.RLock()
	sch, ok := r.schemas[typeName]
	r.mu.RUnlock()

	if !ok {
		return []ValidationError{{Message: fmt.Sprintf("no schema registered for type %q", typeName)}}
	}

	err := sch.Validate(v.Interface())
	if err == nil {
		return nil
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []ValidationError{{Message: err.Error()}}
	}
	return flatten(verr, nil)
}

// flatten collects the leaf causes of a validation error tree
func flatten(verr *jsonschema.ValidationError, out []ValidationError) []ValidationError {
	if len(verr.Causes) == 0 {
		return append(out, ValidationError{Path: verr.InstanceLocation, Message: verr.Message})
	}
	for _, cause := range verr.Causes {
		out = flatten(cause, out)
	}
	return out
}

func newCompiler(documents map[string][]byte) (*jsonschema.Compiler, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	for name, doc := range documents {
		if err := compiler.AddResource(resourceURL(name), bytes.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("invalid schema document %q: %w", name, err)
		}
	}
	return compiler, nil
}

func resourceURL(typeName string) string {
	return baseURL + url.PathEscape(typeName)
}
