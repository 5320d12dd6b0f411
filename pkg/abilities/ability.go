// Package abilities is a registry of named, schema-described operations that
// can be listed and executed by remote callers.
//
// An ability is built from a typed Definition: its input and output JSON
// schemas are reflected from the Go types, input is decoded onto the
// definition's defaults and validated with struct tags, and the permission
// callback runs before the ability itself.
package abilities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var namePattern = regexp.MustCompile(`^[a-z0-9-]+/[a-z0-9-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Meta describes how an ability behaves. Adapters use it for tool annotations.
type Meta struct {
	ReadOnly    bool `json:"readonly"`
	Destructive bool `json:"destructive"`
	Idempotent  bool `json:"idempotent"`
	ShowInREST  bool `json:"show_in_rest"`
}

type Category struct {
	Slug        string `json:"slug"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Definition is the typed description of an ability. Defaults holds the value
// input is decoded onto, so fields absent from a call keep their defaults.
type Definition[In, Out any] struct {
	Label       string
	Description string
	Category    string
	Defaults    In
	Execute     func(ctx context.Context, in In) (Out, error)
	Permission  func(ctx context.Context, in In) bool
	Meta        Meta
}

// Ability is an immutable, registered-ready operation.
type Ability struct {
	name         string
	label        string
	description  string
	category     string
	meta         Meta
	inputSchema  json.RawMessage
	outputSchema json.RawMessage
	required     []string
	properties   map[string]string
	run          func(ctx context.Context, args json.RawMessage) (any, error)
}

func New[In, Out any](name string, def Definition[In, Out]) (*Ability, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid ability name %q: must look like namespace/verb", name)
	}
	if def.Label == "" {
		return nil, fmt.Errorf("ability %s: label is required", name)
	}
	if def.Category == "" {
		return nil, fmt.Errorf("ability %s: category is required", name)
	}
	if def.Execute == nil {
		return nil, fmt.Errorf("ability %s: execute callback is required", name)
	}
	if def.Permission == nil {
		return nil, fmt.Errorf("ability %s: permission callback is required", name)
	}

	inSchema := reflectSchema(reflect.TypeOf((*In)(nil)).Elem())
	applyDefaults(inSchema, def.Defaults)
	inJSON, err := json.Marshal(inSchema)
	if err != nil {
		return nil, fmt.Errorf("ability %s: input schema: %w", name, err)
	}
	outJSON, err := json.Marshal(reflectSchema(reflect.TypeOf((*Out)(nil)).Elem()))
	if err != nil {
		return nil, fmt.Errorf("ability %s: output schema: %w", name, err)
	}

	a := &Ability{
		name:         name,
		label:        def.Label,
		description:  def.Description,
		category:     def.Category,
		meta:         def.Meta,
		inputSchema:  inJSON,
		outputSchema: outJSON,
		required:     append([]string(nil), inSchema.Required...),
		properties:   propertyTypes(inSchema),
	}
	a.run = func(ctx context.Context, args json.RawMessage) (any, error) {
		in := def.Defaults
		if err := a.decodeInput(args, &in); err != nil {
			return nil, err
		}
		if !def.Permission(ctx, in) {
			return nil, newError(CodeInvalidPermissions, nil, "ability %s does not have necessary permission", name)
		}
		out, err := def.Execute(ctx, in)
		if err != nil {
			var abilityErr *Error
			if errors.As(err, &abilityErr) {
				return nil, err
			}
			return nil, newError(CodeExecutionFailed, err, "ability %s failed: %v", name, err)
		}
		out = normalizeOutput(out)
		if err := validateValue(out); err != nil {
			return nil, newError(CodeInvalidOutput, err, "ability %s has invalid output: %v", name, err)
		}
		return out, nil
	}
	return a, nil
}

// MustNew is New for package-level tables of abilities.
func MustNew[In, Out any](name string, def Definition[In, Out]) *Ability {
	a, err := New(name, def)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Ability) Name() string                  { return a.name }
func (a *Ability) Label() string                 { return a.label }
func (a *Ability) Description() string           { return a.description }
func (a *Ability) Category() string              { return a.category }
func (a *Ability) Meta() Meta                    { return a.meta }
func (a *Ability) InputSchema() json.RawMessage  { return a.inputSchema }
func (a *Ability) OutputSchema() json.RawMessage { return a.outputSchema }

// Execute runs the ability with raw JSON arguments. An empty or null argument
// list is treated as an empty object.
func (a *Ability) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.run(ctx, args)
}

func (a *Ability) decodeInput(args json.RawMessage, in any) error {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		args = []byte("{}")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(args, &raw); err != nil {
		return newError(CodeInvalidInput, err, "ability %s has invalid input: input must be an object", a.name)
	}

	// Only exact property names bind; anything else is an additional property.
	known := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		typ, ok := a.properties[key]
		if !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			if typ != "" && typ != "null" {
				return newError(CodeInvalidInput, nil, "ability %s has invalid input: %s is not of type %s", a.name, key, typ)
			}
			continue
		}
		if typ == "integer" {
			value = integralNumber(value)
		}
		known[key] = value
	}
	for _, key := range a.required {
		if _, ok := known[key]; !ok {
			return newError(CodeInvalidInput, nil, "ability %s has invalid input: %s is a required property", a.name, key)
		}
	}

	filtered, err := json.Marshal(known)
	if err != nil {
		return newError(CodeInvalidInput, err, "ability %s has invalid input: %v", a.name, err)
	}
	if err := json.Unmarshal(filtered, in); err != nil {
		return newError(CodeInvalidInput, err, "ability %s has invalid input: %s", a.name, describeDecodeError(err))
	}
	if err := validateValue(in); err != nil {
		return newError(CodeInvalidInput, err, "ability %s has invalid input: %s", a.name, describeValidation(err))
	}
	return nil
}

// propertyTypes maps each top-level input property to its schema type.
func propertyTypes(schema *jsonschema.Schema) map[string]string {
	types := make(map[string]string)
	if schema.Properties == nil {
		return types
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		types[pair.Key] = pair.Value.Type
	}
	return types
}

// integralNumber rewrites numbers such as 2.0 or 1e1 as plain integers so
// they decode into integer fields. Anything else is returned unchanged.
func integralNumber(value json.RawMessage) json.RawMessage {
	text := string(bytes.TrimSpace(value))
	if !strings.ContainsAny(text, ".eE") || strings.HasPrefix(text, `"`) {
		return value
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return value
	}
	return json.RawMessage(strconv.FormatInt(int64(f), 10))
}

func reflectSchema(t reflect.Type) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		Anonymous:                  true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.ReflectFromType(t)
	schema.Version = ""
	return schema
}

// applyDefaults publishes non-zero default values in the input schema.
func applyDefaults(schema *jsonschema.Schema, defaults any) {
	if schema.Properties == nil {
		return
	}
	v := reflect.Indirect(reflect.ValueOf(defaults))
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" || !field.IsExported() || v.Field(i).IsZero() {
			continue
		}
		if prop, ok := schema.Properties.Get(name); ok && prop.Default == nil {
			prop.Default = v.Field(i).Interface()
		}
	}
}

// normalizeOutput turns nil slices into empty ones so list results encode as
// [] rather than null.
func normalizeOutput[T any](out T) T {
	v := reflect.ValueOf(&out).Elem()
	if v.Kind() == reflect.Slice && v.IsNil() {
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
	}
	return out
}

// validateValue runs struct validation on v, or on every element when v is a
// slice of structs.
func validateValue(v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		return validate.Struct(rv.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			item := reflect.Indirect(rv.Index(i))
			if item.Kind() != reflect.Struct {
				continue
			}
			if err := validate.Struct(item.Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s is not one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is a required property", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s is not of type %s", typeErr.Field, jsonType(typeErr.Type))
	}
	return err.Error()
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
