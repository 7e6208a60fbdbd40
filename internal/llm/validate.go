package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiled schemas keyed by Schema.Name
var (
	compiledMu sync.Mutex
	compiled   = map[string]*jsonschema.Schema{}
)

// Validate checks raw against schema the same way providers check their
// structured replies. A nil schema accepts anything.
func Validate(schema *Schema, raw json.RawMessage) error {
	if err := validateResponse(schema, raw); err != nil {
		return err
	}
	return nil
}

func validateResponse(schema *Schema, raw json.RawMessage) *Error {
	if schema == nil {
		return nil
	}
	invalid := func(err error) *Error {
		return &Error{Kind: KindInvalidResponse, Content: raw, Err: err}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return invalid(fmt.Errorf("not JSON: %w", err))
	}
	sch, err := compileSchema(schema)
	if err != nil {
		return invalid(err)
	}
	if err := sch.Validate(doc); err != nil {
		return invalid(fmt.Errorf("schema %s: %w", schema.Name, err))
	}
	return nil
}

func compileSchema(schema *Schema) (*jsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	if sch, ok := compiled[schema.Name]; ok {
		return sch, nil
	}

	// The compiler wants decoded JSON values, not Go ints, so round-trip
	// the definition.
	def, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("encode schema %s: %w", schema.Name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", schema.Name, err)
	}

	url := "mem://sous/" + schema.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", schema.Name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schema.Name, err)
	}
	compiled[schema.Name] = sch
	return sch, nil
}
