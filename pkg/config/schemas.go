package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas. They are constants
// covered by tests, so compile errors are not expected here.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	_ = sr.RegisterSchema("config", "#Config", builtinSchemas)
	_ = sr.RegisterSchema("site", "#Site", builtinSchemas)
	_ = sr.RegisterSchema("wpcom", "#WPCom", builtinSchemas)
	_ = sr.RegisterSchema("database", "#Database", builtinSchemas)
}

// RegisterSchema compiles source and registers its definition under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return fmt.Errorf("failed to find definition %s in schema %s: %w", definition, name, err)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema. Field names
// follow the YAML keys, so data is usually a decoded YAML document.
func (sr *SchemaRegistry) ValidateAgainstSchema(_ context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	// The CUE context is not safe for concurrent use.
	sr.mu.Lock()
	defer sr.mu.Unlock()

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDocument validates a decoded configuration document.
func (sr *SchemaRegistry) ValidateDocument(ctx context.Context, doc map[string]interface{}) error {
	return sr.ValidateAgainstSchema(ctx, "config", doc)
}

const builtinSchemas = `
// Duration strings such as "30s" or "5m".
#Duration: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Database: {
	path?:              string & !=""
	max_open_conns?:    int & >=0
	max_idle_conns?:    int & >=0
	conn_max_lifetime?: #Duration
}

#WPCom: {
	base_url?:        string & =~"^https?://"
	token?:           string
	timeout?:         #Duration
	max_retries?:     int & >=0 & <=10
	user_agent?:      string
	initial_backoff?: #Duration
}

#Site: {
	id:                 int & >0
	site_id:            int & >0
	name?:              string
	url?:               string
	jetpack_connected?: bool
	wpcom_rest_api?:    bool
}

#Config: {
	database?: #Database
	wpcom?:    #WPCom

	// Telemetry has its own validation.
	telemetry?: {...}

	dispatcher?: {
		queue_size?: int & >=0
	}

	sync?: {
		interval?: #Duration
		catalog?:  bool
	}

	sites?: [...#Site]
}
`
