package extractor

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const outputSchemaURL = "notelens://extractor/output.json"

const outputSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "notes", "folders", "accounts"],
  "properties": {
    "notes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["title", "creation_time", "modify_time", "folder_key", "account_key"]
      }
    },
    "folders": {
      "type": "object",
      "additionalProperties": { "type": "object" }
    },
    "accounts": { "type": "object" }
  }
}`

var outputSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(outputSchemaJSON))
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(outputSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(outputSchemaURL)
})
