package schema

import "encoding/json"

// EntryMetaSchema is the study-agnostic structural schema applied to the
// free-form metadata columns of every ingested row. It constrains shape,
// not vocabulary: keys are arbitrary, values must be scalars.
const EntryMetaSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": ["string", "number", "boolean", "null"]
  }
}`

// EntryMeta returns the entry metadata schema as a raw JSON document.
func EntryMeta() json.RawMessage {
	return json.RawMessage(EntryMetaSchema)
}
