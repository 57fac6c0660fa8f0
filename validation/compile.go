// Copyright 2026 The Lattice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"github.com/spf13/cast"
)

// compiledSchema is the compiled form of a [Descriptor]: the JSON Schema
// plus the coercion metadata the schema language cannot express.
type compiledSchema struct {
	descriptor *Descriptor
	schema     *jsonschema.Schema
}

// compile lowers the descriptor to a JSON Schema document and compiles it
// with format assertions enabled.
func compile(d *Descriptor) (*compiledSchema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()

	doc := d.schemaDoc()

	// Round-trip through encoding/json so the compiler sees plain decoded
	// JSON values.
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema document: %w", err)
	}
	resource, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}

	const schemaURL = "schema.json"
	if err := compiler.AddResource(schemaURL, resource); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &compiledSchema{descriptor: d, schema: schema}, nil
}

// Validate runs the full per-request algorithm: default injection and
// coercion, schema validation, and unknown-key stripping. It returns the
// validated-and-coerced output, which replaces the request's structure on
// success. Failures are returned as ordered field failures; all failures
// are collected unless abortEarly is set.
func (cs *compiledSchema) Validate(input map[string]any, abortEarly bool) (map[string]any, []FieldFailure) {
	if input == nil {
		input = map[string]any{}
	}

	output := applyRules(input, cs.descriptor.fields)

	// Normalize to decoded-JSON values for the schema engine: coercion may
	// have produced native Go ints.
	normalized, err := normalize(output)
	if err != nil {
		return nil, []FieldFailure{{Kind: "input.encoding", Message: err.Error()}}
	}

	if err := cs.schema.Validate(normalized); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, []FieldFailure{{Kind: "schema.internal", Message: err.Error()}}
		}
		failures := collectFailures(verr, output)
		sortFailures(failures)
		if abortEarly && len(failures) > 1 {
			failures = failures[:1]
		}
		return nil, failures
	}

	if cs.descriptor.stripUnknown {
		stripUnknownKeys(output, cs.descriptor.fields)
	}
	return output, nil
}

// applyRules walks the declared fields in sorted order, injecting defaults
// and applying trimming and coercion. Unknown keys pass through untouched;
// the schema decides their fate.
func applyRules(input map[string]any, fields Fields) map[string]any {
	output := make(map[string]any, len(input))
	for k, v := range input {
		output[k] = v
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	// Sorted order keeps default/coercion application deterministic.
	sort.Strings(names)

	for _, name := range names {
		rule := fields[name]
		value, present := output[name]
		if !present {
			if rule.hasDefault {
				output[name] = rule.def
			}
			continue
		}
		output[name] = rule.apply(value)
	}
	return output
}

// apply trims, coerces, and recurses into one value per its rule.
func (r *Rule) apply(value any) any {
	if s, ok := value.(string); ok && r.trim {
		value = strings.TrimSpace(s)
	}

	if r.coerce {
		value = r.coerceValue(value)
	}

	switch r.kind {
	case KindObject:
		if m, ok := value.(map[string]any); ok && len(r.fields) > 0 {
			return applyRules(m, r.fields)
		}
	case KindArray:
		if items, ok := value.([]any); ok && r.items != nil {
			out := make([]any, len(items))
			for i, item := range items {
				out[i] = r.items.apply(item)
			}
			return out
		}
	}
	return value
}

// coerceValue converts the value toward the rule's kind when the conversion
// is lossless. On failure the original value is kept and the schema reports
// the type mismatch.
func (r *Rule) coerceValue(value any) any {
	switch r.kind {
	case KindInt:
		// cast truncates floats; only a whole-number float is lossless.
		switch f := value.(type) {
		case float64:
			if f == float64(int64(f)) {
				return int64(f)
			}
			return value
		case float32:
			if float64(f) == float64(int64(f)) {
				return int64(f)
			}
			return value
		}
		if v, err := cast.ToInt64E(value); err == nil {
			return v
		}
	case KindNumber:
		if v, err := cast.ToFloat64E(value); err == nil {
			return v
		}
	case KindBool:
		if v, err := cast.ToBoolE(value); err == nil {
			return v
		}
	case KindString, KindDate, KindUUID, KindEmail, KindURL:
		if v, err := cast.ToStringE(value); err == nil {
			return v
		}
	}
	return value
}

// normalize round-trips a structure through encoding/json so the schema
// engine only sees decoded JSON values.
func normalize(v map[string]any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}
	return out, nil
}

// stripUnknownKeys removes undeclared keys from the output, recursively for
// declared nested objects.
func stripUnknownKeys(m map[string]any, fields Fields) {
	if len(fields) == 0 {
		return
	}
	for k, v := range m {
		rule, declared := fields[k]
		if !declared {
			delete(m, k)
			continue
		}
		if rule.kind == KindObject && len(rule.fields) > 0 {
			if nested, ok := v.(map[string]any); ok {
				stripUnknownKeys(nested, rule.fields)
			}
		}
	}
}

// collectFailures flattens the schema error tree into field failures,
// expanding required and unknown-key errors to one failure per field.
func collectFailures(verr *jsonschema.ValidationError, input map[string]any) []FieldFailure {
	var failures []FieldFailure
	walkFailures(verr, input, &failures)
	return failures
}

func walkFailures(verr *jsonschema.ValidationError, input map[string]any, out *[]FieldFailure) {
	if verr == nil {
		return
	}

	if len(verr.Causes) == 0 {
		path := strings.Join(verr.InstanceLocation, ".")

		switch k := verr.ErrorKind.(type) {
		case *kind.Required:
			for _, missing := range k.Missing {
				*out = append(*out, FieldFailure{
					Path:    joinPath(path, missing),
					Kind:    "required",
					Message: "is required",
				})
			}
		case *kind.AdditionalProperties:
			for _, prop := range k.Properties {
				*out = append(*out, FieldFailure{
					Path:    joinPath(path, prop),
					Kind:    "unknown",
					Message: "is not allowed",
					Value:   representable(lookupPath(input, joinPath(path, prop))),
				})
			}
		default:
			*out = append(*out, FieldFailure{
				Path:    path,
				Kind:    kindName(verr.ErrorKind),
				Message: leafMessage(verr),
				Value:   representable(lookupPath(input, path)),
			})
		}
		return
	}

	for _, cause := range verr.Causes {
		walkFailures(cause, input, out)
	}
}

// kindName maps schema error kinds onto stable failure kinds.
func kindName(k jsonschema.ErrorKind) string {
	switch k.(type) {
	case *kind.Type:
		return "type"
	case *kind.Enum:
		return "enum"
	case *kind.Format:
		return "format"
	case *kind.Pattern:
		return "pattern"
	case *kind.MinLength:
		return "minLength"
	case *kind.MaxLength:
		return "maxLength"
	case *kind.Minimum:
		return "minimum"
	case *kind.Maximum:
		return "maximum"
	case *kind.MinItems:
		return "minItems"
	case *kind.MaxItems:
		return "maxItems"
	default:
		return "schema"
	}
}

// leafMessage renders a single node's message without the tree prefix.
func leafMessage(verr *jsonschema.ValidationError) string {
	msg := verr.Error()
	// The library prefixes messages with "jsonschema validation failed ...";
	// keep only the last line's content for field-level messages.
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

// joinPath appends a segment to a dotted path.
func joinPath(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + "." + segment
}

// lookupPath resolves a dotted path (with numeric array indexes) in the
// input structure.
func lookupPath(input map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var current any = input
	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			current = node[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}

// representable returns the offending value when it is a scalar, nil
// otherwise (aggregates are elided from error payloads).
func representable(v any) any {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v
	default:
		return nil
	}
}

// sortFailures orders failures by path then kind for stable presentation.
func sortFailures(failures []FieldFailure) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Path != failures[j].Path {
			return failures[i].Path < failures[j].Path
		}
		return failures[i].Kind < failures[j].Kind
	})
}
