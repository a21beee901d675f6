package config

import (
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const flowSchemaURL = "https://flowtrack.local/schemas/flow-config.json"

// flowSchemaJSON — JSON-схема файла конфигурации flow.
const flowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowtrack.local/schemas/flow-config.json",
  "type": "object",
  "required": ["flowName", "flowDefinition"],
  "properties": {
    "flowName": { "type": "string", "minLength": 1, "pattern": "^[^/\\\\]+$" },
    "refreshInterval": { "type": "integer", "minimum": 1 },
    "databases": {
      "type": "object",
      "properties": {
        "aws": { "$ref": "#/$defs/database" },
        "oracle": { "$ref": "#/$defs/database" }
      },
      "additionalProperties": false
    },
    "flowDefinition": {
      "type": "object",
      "required": ["overall"],
      "properties": {
        "overall": { "type": "string", "minLength": 1 },
        "subStages": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "additionalProperties": { "type": "string" }
          }
        }
      },
      "additionalProperties": false
    },
    "stageMappings": {
      "type": "object",
      "properties": {
        "aws": {
          "type": "object",
          "additionalProperties": { "type": "string", "minLength": 1 }
        },
        "onPrem": {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/processRef" }
        }
      },
      "additionalProperties": false
    }
  },
  "$defs": {
    "database": {
      "type": "object",
      "required": ["host"],
      "properties": {
        "driver": { "enum": ["postgres", "mysql"] },
        "host": { "type": "string", "minLength": 1 },
        "port": { "type": "integer", "minimum": 1, "maximum": 65535 },
        "user": { "type": "string" },
        "password": { "type": "string" },
        "database": { "type": "string" },
        "service": { "type": "string" }
      },
      "additionalProperties": false
    },
    "processRef": {
      "type": "object",
      "properties": {
        "bpf_id": { "type": "integer" },
        "process_id": { "type": "integer" }
      },
      "additionalProperties": false
    }
  }
}`

// flowSchema компилируется один раз при первом обращении.
var flowSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(flowSchemaJSON))
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(flowSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(flowSchemaURL)
})
