package ws

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const requestSchemaURL = "notelens://ws/request.json"

const requestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "requestId", "timestamp"],
  "properties": {
    "type": { "type": "string", "minLength": 1 },
    "requestId": { "type": "string" },
    "timestamp": { "type": ["number", "string"] }
  }
}`

var requestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(requestSchemaJSON))
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(requestSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(requestSchemaURL)
})
