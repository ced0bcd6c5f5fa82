package analyzer

import (
	"embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"bidflow/internal/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func loadSchemas() {
	schemas = make(map[string]*jsonschema.Schema, 2)
	for _, name := range []string{"items", "issues"} {
		data, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("read %s schema: %w", name, err)
			return
		}
		compiler := jsonschema.NewCompiler()
		schema, err := compiler.Compile(data)
		if err != nil {
			schemaErr = fmt.Errorf("compile %s schema: %w", name, err)
			return
		}
		schemas[name] = schema
	}
}

// validatePayload checks a folded payload against the envelope schema of the task.
func validatePayload(task domain.TaskType, data []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	schema := schemas[listKey(task)]
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

// listKey is the payload key holding the task's list.
func listKey(task domain.TaskType) string {
	if task.ProducesIssues() {
		return "issues"
	}
	return "items"
}
