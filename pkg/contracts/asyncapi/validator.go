// Package asyncapi checks emitted CloudEvents against the payload schemas in
// api/asyncapi.yaml. Tests use it to keep the event contract and the code in
// step.
package asyncapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// a components.schemas entry is bound to a CloudEvents type by this extension
const eventTypeKey = "x-event-type"

const specVersion = "1.0"

type document struct {
	Components struct {
		Schemas map[string]map[string]any `yaml:"schemas"`
	} `yaml:"components"`
}

// envelope is the subset of CloudEvent attributes the validator requires
type envelope struct {
	SpecVersion string          `json:"specversion"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	ID          string          `json:"id"`
	Data        json.RawMessage `json:"data"`
}

type EventValidator struct {
	schemas map[string]*jsonschema.Schema
}

func NewEventValidator(path string) (*EventValidator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asyncapi document: %w", err)
	}
	return NewEventValidatorFromBytes(raw)
}

func NewEventValidatorFromBytes(raw []byte) (*EventValidator, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse asyncapi document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	v := &EventValidator{schemas: make(map[string]*jsonschema.Schema)}
	for name, schema := range doc.Components.Schemas {
		eventType, _ := schema[eventTypeKey].(string)
		if eventType == "" {
			continue
		}
		compiled, err := compile(compiler, "asyncapi://schemas/"+name, schema)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		v.schemas[eventType] = compiled
	}
	return v, nil
}

// compile goes through JSON so the compiler sees json.Number values rather
// than the ints and floats yaml.v3 produces.
func compile(compiler *jsonschema.Compiler, uri string, schema map[string]any) (*jsonschema.Schema, error) {
	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	if err := compiler.AddResource(uri, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(uri)
}

// ValidateEventJSON checks the envelope attributes of a structured-mode
// CloudEvent and validates its data against the schema for its type.
func (v *EventValidator) ValidateEventJSON(eventJSON []byte) error {
	var event envelope
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return fmt.Errorf("decode cloudevent: %w", err)
	}

	switch {
	case event.SpecVersion != specVersion:
		return fmt.Errorf("specversion %q, want %s", event.SpecVersion, specVersion)
	case event.ID == "" || event.Source == "" || event.Type == "":
		return errors.New("cloudevent needs id, source and type")
	case len(event.Data) == 0 || string(event.Data) == "null":
		return fmt.Errorf("%s: data is empty", event.Type)
	}

	schema, ok := v.schemas[event.Type]
	if !ok {
		return fmt.Errorf("%s: no schema in the contract", event.Type)
	}
	data, err := jsonschema.UnmarshalJSON(bytes.NewReader(event.Data))
	if err != nil {
		return fmt.Errorf("%s: decode data: %w", event.Type, err)
	}
	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("%s: %w", event.Type, err)
	}
	return nil
}

func (v *EventValidator) HasSchema(eventType string) bool {
	_, ok := v.schemas[eventType]
	return ok
}

// EventTypes lists the types with a schema, sorted
func (v *EventValidator) EventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for t := range v.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
