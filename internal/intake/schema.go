package intake

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const requestSchema = `{
  "type": "object",
  "required": ["job_id"],
  "properties": {
    "job_id":        {"type": "string", "minLength": 1},
    "customer_name": {"type": ["string", "null"]},
    "start_date":    {"type": ["string", "null"]},
    "required_date": {"type": ["string", "null"]},
    "sub_jobs": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["sub_job_id"],
        "properties": {
          "sub_job_id":    {"type": "string", "minLength": 1},
          "color":         {"type": ["string", "null"]},
          "card_size":     {"type": ["string", "null"]},
          "card_quantity": {"$ref": "#/$defs/quantity"},
          "item_quantity": {"$ref": "#/$defs/quantity"},
          "description":   {"type": ["string", "null"]},
          "processes": {
            "type": ["object", "null"],
            "additionalProperties": {"type": "boolean"}
          }
        }
      }
    }
  },
  "$defs": {
    "quantity": {
      "type": ["integer", "string", "null"],
      "pattern": "^\\s*-?\\d*\\s*$"
    }
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("submit-job.json", strings.NewReader(requestSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("submit-job.json")
}

// schemaMessage reduces a schema failure to its first leaf, e.g.
// "/sub_jobs/0: missing properties: 'sub_job_id'".
func schemaMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
