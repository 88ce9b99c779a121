package parser

// documentSchema is the JSON Schema every workflow definition document must
// satisfy before typed decoding. It pins the step union discriminant and
// field types; graph-level rules (duplicate ids, dangling references,
// reachability) are advisory and live in Validate.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "trigger": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"type": "string", "enum": ["phrase", "keyword", "intent"]},
        "phrases": {"type": "array", "items": {"type": "string"}},
        "keywords": {"type": "array", "items": {"type": "string"}},
        "case_sensitive": {"type": "boolean"}
      }
    },
    "variables": {"type": "object"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {
            "type": "string",
            "enum": ["message", "choice", "input", "condition", "action", "delay"]
          },
          "content": {"type": "string"},
          "options": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["text", "value"],
              "properties": {
                "text": {"type": "string"},
                "value": {"type": "string"},
                "next_step": {"type": ["string", "null"]}
              }
            }
          },
          "variable": {"type": "string"},
          "condition": {"type": "string"},
          "action": {"type": "string"},
          "params": {"type": "object"},
          "next_step": {"type": ["string", "null"]},
          "metadata": {"type": "object"}
        }
      }
    }
  }
}`
