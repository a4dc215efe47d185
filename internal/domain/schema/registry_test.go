package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
)

const pointSchema = `{
	"type": "object",
	"required": ["x", "y"],
	"properties": {
		"x": {"type": "integer"},
		"y": {"type": "integer"}
	},
	"additionalProperties": false
}`

const segmentSchema = `{
	"type": "object",
	"required": ["from", "to"],
	"properties": {
		"from": {"$ref": "Point"},
		"to": {"$ref": "Point"}
	}
}`

func point(x, y interface{}) value.Value {
	return value.MustFrom(map[string]interface{}{"x": x, "y": y})
}

func TestRegisterAndValidate(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, r.Register("Point", []byte(pointSchema)))

	assert.True(t, r.Has("Point"))
	assert.Empty(t, r.ValidateObject("Point", point(1, 2)))

	errs := r.ValidateObject("Point", point(1, "two"))
	require.NotEmpty(t, errs)
	assert.Equal(t, "/y", errs[0].Path)

	errs = r.ValidateObject("Point", value.MustFrom(map[string]interface{}{"x": 1}))
	assert.NotEmpty(t, errs)
}

func TestUnknownTypeIsValidationError(t *testing.T) {
	r := NewRegistry(nil)

	errs := r.ValidateObject("Missing", point(1, 2))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Missing")
}

func TestRegisterRejectsInvalidDocument(t *testing.T) {
	r := NewRegistry(nil)

	assert.Error(t, r.Register("Broken", []byte(`{"type": `)))
	assert.Error(t, r.Register("", []byte(pointSchema)))
	assert.False(t, r.Has("Broken"))
}

func TestReferencesBetweenTypes(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.RegisterAll(map[string][]byte{
		"Segment": []byte(segmentSchema),
		"Point":   []byte(pointSchema),
	}))

	valid := value.Map(map[string]value.Value{"from": point(0, 0), "to": point(3, 4)})
	assert.Empty(t, r.ValidateObject("Segment", valid))

	invalid := value.Map(map[string]value.Value{"from": point(0, 0), "to": point(3, 4.5)})
	assert.NotEmpty(t, r.ValidateObject("Segment", invalid))
}

func TestReferenceToUnregisteredTypeFails(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Register("Segment", []byte(segmentSchema)))
	assert.Empty(t, r.Types())
}

func TestReplacingSchema(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("Point", []byte(pointSchema)))
	require.NoError(t, r.Register("Point", []byte(`{"type": "object"}`)))

	assert.Empty(t, r.ValidateObject("Point", value.MustFrom(map[string]interface{}{"z": true})))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Point.json": pointSchema,
		"Segment.yaml": `
type: object
required: [from, to]
properties:
  from: {$ref: Point}
  to: {$ref: Point}
`,
		"Label.toml": `
type = "object"
required = ["text"]

[properties.text]
type = "string"
`,
		"Tag.jsonc": `{
  // free-form label
  "type": "string", /* no limits */
}`,
		"README.md": "not a schema",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	r := NewRegistry(zaptest.NewLogger(t))
	n, err := r.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"Label", "Point", "Segment", "Tag"}, r.Types())

	assert.Empty(t, r.ValidateObject("Label", value.MustFrom(map[string]interface{}{"text": "hi"})))
	assert.NotEmpty(t, r.ValidateObject("Label", value.MustFrom(map[string]interface{}{"text": 3})))
	assert.Empty(t, r.ValidateObject("Tag", value.String("urgent")))
}

func TestLoadDirMissing(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
