package validation

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/domain/schema"
	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// ErrSchemaDefinition marks failures caused by the signature itself rather
// than by the supplied data
var ErrSchemaDefinition = errors.New("invalid parameter declaration")

// Reason classifies a validation failure
type Reason string

const (
	ReasonMissing    Reason = "missing"
	ReasonRedundant  Reason = "redundant"
	ReasonType       Reason = "type"
	ReasonSchema     Reason = "schema"
	ReasonDefinition Reason = "definition"
)

// Error describes the first argument that failed validation
type Error struct {
	// Path locates the argument, e.g. "points[2][0]"
	Path   string
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("argument %s: %s: %s", e.Path, e.Reason, e.Detail)
}

// Unwrap lets callers detect broken signatures with errors.Is
func (e *Error) Unwrap() error {
	if e.Reason == ReasonDefinition {
		return ErrSchemaDefinition
	}
	return nil
}

// ObjectValidator validates values of named object types
type ObjectValidator interface {
	Has(typeName string) bool
	ValidateObject(typeName string, v value.Value) []schema.ValidationError
}

// Validator checks argument maps against action signatures
type Validator struct {
	objects ObjectValidator
	logger  *zap.Logger
}

// New creates a validator resolving object types through objects
func New(objects ObjectValidator, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{objects: objects, logger: logger}
}

// IsValid reports whether arguments satisfy the signature
func (v *Validator) IsValid(signature types.ActionSignature, arguments map[string]value.Value) bool {
	return v.Check(signature, arguments) == nil
}

// Check validates arguments against the signature and returns the first
// failure, or nil when the call is valid.
func (v *Validator) Check(signature types.ActionSignature, arguments map[string]value.Value) *Error {
	// Missing arguments
	for _, name := range sortedKeys(signature) {
		if !signature[name].Required {
			continue
		}
		if _, ok := arguments[name]; !ok {
			return &Error{Path: name, Reason: ReasonMissing, Detail: "required argument not supplied"}
		}
	}

	// Redundant arguments
	names := make([]string, 0, len(arguments))
	for name := range arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := signature[name]; !ok {
			return &Error{Path: name, Reason: ReasonRedundant, Detail: "no such parameter"}
		}
	}

	// Per-argument types
	for _, name := range names {
		if err := v.checkValue(name, signature[name], arguments[name]); err != nil {
			if err.Reason == ReasonDefinition {
				v.logger.Warn("Action signature declares a collection without items",
					zap.String("parameter", err.Path))
			}
			return err
		}
	}
	return nil
}

func (v *Validator) checkValue(path string, param types.Parameter, arg value.Value) *Error {
	if param.IsCollection() {
		return v.checkList(path, param, arg)
	}

	if kind, ok := primitiveKind(param.Type); ok {
		if !checkPrimitive(kind, arg) {
			return &Error{Path: path, Reason: ReasonType, Detail: fmt.Sprintf("expected %s, got %s", param.Type, arg.Kind())}
		}
		return nil
	}

	if v.objects == nil || !v.objects.Has(param.Type) {
		return &Error{Path: path, Reason: ReasonType, Detail: fmt.Sprintf("unknown type %q", param.Type)}
	}
	if errs := v.objects.ValidateObject(param.Type, arg); len(errs) > 0 {
		return &Error{Path: path, Reason: ReasonSchema, Detail: errs[0].Error()}
	}
	return nil
}

func (v *Validator) checkList(path string, param types.Parameter, arg value.Value) *Error {
	if param.Items == nil {
		return &Error{Path: path, Reason: ReasonDefinition, Detail: fmt.Sprintf("collection type %q declares no items", param.Type)}
	}

	items, ok := arg.AsList()
	if !ok {
		return &Error{Path: path, Reason: ReasonType, Detail: fmt.Sprintf("expected %s, got %s", param.Type, arg.Kind())}
	}
	for i, item := range items {
		if err := v.checkValue(fmt.Sprintf("%s[%d]", path, i), *param.Items, item); err != nil {
			return err
		}
	}
	return nil
}

type primitive int

const (
	primitiveInteger primitive = iota
	primitiveDouble
	primitiveBoolean
	primitiveString
)

var primitiveTags = map[string]primitive{
	"integer": primitiveInteger,
	"int":     primitiveInteger,
	"double":  primitiveDouble,
	"float":   primitiveDouble,
	"decimal": primitiveDouble,
	"boolean": primitiveBoolean,
	"bool":    primitiveBoolean,
	"string":  primitiveString,
	"str":     primitiveString,
	"text":    primitiveString,
}

func primitiveKind(tag string) (primitive, bool) {
	kind, ok := primitiveTags[strings.ToLower(tag)]
	return kind, ok
}

func checkPrimitive(kind primitive, arg value.Value) bool {
	switch kind {
	case primitiveInteger:
		if arg.Kind() != value.KindNumber && arg.Kind() != value.KindString {
			return false
		}
		// Any exact integer literal, whatever its magnitude
		_, ok := new(big.Int).SetString(strings.TrimSpace(arg.Text()), 10)
		return ok
	case primitiveDouble:
		if arg.Kind() != value.KindNumber && arg.Kind() != value.KindString {
			return false
		}
		_, err := strconv.ParseFloat(strings.TrimSpace(arg.Text()), 64)
		return err == nil
	case primitiveBoolean:
		switch arg.Kind() {
		case value.KindBool:
			return true
		case value.KindString:
			s := strings.ToLower(strings.TrimSpace(arg.Text()))
			return s == "true" || s == "false"
		}
		return false
	case primitiveString:
		if arg.Kind() == value.KindString {
			return true
		}
		return arg.Text() != ""
	}
	return false
}

func sortedKeys(signature types.ActionSignature) []string {
	keys := make([]string, 0, len(signature))
	for k := range signature {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
