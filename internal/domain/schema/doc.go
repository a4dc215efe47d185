// Package schema holds the compiled structural schemas of object-typed
// action parameters, keyed by type name.
//
// Schema documents are JSON-Schema documents. A document may reference
// another registered type by name ("$ref": "Point"), which makes documents
// composable. Documents can be registered one at a time or loaded from a
// directory of .json, .yaml/.yml and .toml files, where the file name
// (without extension) is the type name.
//
// Looking up an unregistered type never fails hard: ValidateObject reports it
// as a validation error, so the argument validator treats the value as invalid.
//
// Example Usage:
//
//	registry := schema.NewRegistry(logger)
//	_ = registry.Register("Point", []byte(`{"type":"object","required":["x","y"]}`))
//	errs := registry.ValidateObject("Point", value.MustFrom(map[string]interface{}{"x": 1}))
package schema
