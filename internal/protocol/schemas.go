package protocol

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	helloSchema   = mustSchema("hello.schema.json")
	commandSchema = mustSchema("command.schema.json")
)

func mustSchema(name string) *jsonschema.Schema {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(err)
	}
	return jsonschema.MustCompileString(name, string(b))
}

// ValidateHello checks a raw HELLO against its schema.
func ValidateHello(raw []byte) error { return validate(helloSchema, raw) }

// ValidateCommand checks a raw CMD against its schema.
func ValidateCommand(raw []byte) error { return validate(commandSchema, raw) }

func validate(s *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return s.Validate(v)
}
