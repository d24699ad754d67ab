package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#CustomType: {
	field1: string
	field2: int
}
`

	err := sr.RegisterSchema("custom", "#CustomType", customSchema)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}

	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	ctx := context.Background()
	if err := sr.ValidateAgainstSchema(ctx, "custom", map[string]interface{}{"field1": "a", "field2": 1}); err != nil {
		t.Errorf("expected valid data, got %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "custom", map[string]interface{}{"field1": "a", "field2": "b"}); err == nil {
		t.Error("expected type mismatch to fail")
	}
}

func TestSchemaRegistry_RegisterErrors(t *testing.T) {
	sr := NewSchemaRegistry()

	if err := sr.RegisterSchema("broken", "#X", "#X: {"); err == nil {
		t.Error("expected compile error")
	}
	if err := sr.RegisterSchema("missing", "#Missing", "#X: {}"); err == nil {
		t.Error("expected missing definition error")
	}
	if err := sr.ValidateAgainstSchema(context.Background(), "nope", nil); err == nil {
		t.Error("expected unknown schema error")
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	builtins := []string{"config", "database", "site", "wpcom"}

	got := sr.ListSchemas()
	if len(got) != len(builtins) {
		t.Fatalf("expected %d schemas, got %v", len(builtins), got)
	}

	for i, name := range builtins {
		t.Run(name, func(t *testing.T) {
			if got[i] != name {
				t.Errorf("expected sorted name %s, got %s", name, got[i])
			}

			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}

			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}
}

func TestSchemaRegistry_ValidateDocument(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		doc     map[string]interface{}
		wantErr bool
	}{
		{
			name:    "empty document",
			doc:     map[string]interface{}{},
			wantErr: false,
		},
		{
			name: "valid document",
			doc: map[string]interface{}{
				"database": map[string]interface{}{"path": "/var/lib/themesync.db", "conn_max_lifetime": "5m"},
				"wpcom":    map[string]interface{}{"base_url": "https://public-api.wordpress.com", "max_retries": 3},
				"telemetry": map[string]interface{}{
					"logging": map[string]interface{}{"level": "debug"},
				},
				"sync": map[string]interface{}{"interval": "1h30m", "catalog": false},
				"sites": []interface{}{
					map[string]interface{}{"id": 1, "site_id": 1001, "jetpack_connected": true},
				},
			},
			wantErr: false,
		},
		{
			name:    "unknown top-level key",
			doc:     map[string]interface{}{"databse": map[string]interface{}{}},
			wantErr: true,
		},
		{
			name:    "bad duration",
			doc:     map[string]interface{}{"sync": map[string]interface{}{"interval": "soon"}},
			wantErr: true,
		},
		{
			name:    "bad base url",
			doc:     map[string]interface{}{"wpcom": map[string]interface{}{"base_url": "ftp://x"}},
			wantErr: true,
		},
		{
			name:    "too many retries",
			doc:     map[string]interface{}{"wpcom": map[string]interface{}{"max_retries": 50}},
			wantErr: true,
		},
		{
			name: "site without id",
			doc: map[string]interface{}{
				"sites": []interface{}{map[string]interface{}{"site_id": 5}},
			},
			wantErr: true,
		},
		{
			name: "site with zero site id",
			doc: map[string]interface{}{
				"sites": []interface{}{map[string]interface{}{"id": 1, "site_id": 0}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateDocument(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
