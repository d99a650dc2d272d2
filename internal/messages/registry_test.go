package messages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessages = `
messages:
  available:
    subject: "Go go go"
    body: "Tickets at {{.target}}!"
    schema:
      type: object
      required: [target]
  custom_ping:
    subject: "Ping"
    body: "pong {{.n}}"
`

func writeMessages(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryRender(t *testing.T) {
	r, err := NewRegistry(writeMessages(t, testMessages))
	require.NoError(t, err)

	subject, body, err := r.Render(IDAvailable, map[string]any{"target": "https://example.test"})
	require.NoError(t, err)
	assert.Equal(t, "Go go go", subject)
	assert.Equal(t, "Tickets at https://example.test!", body)
}

func TestRegistrySchemaValidation(t *testing.T) {
	r, err := NewRegistry(writeMessages(t, testMessages))
	require.NoError(t, err)

	_, _, err = r.Render(IDAvailable, map[string]any{})
	require.Error(t, err, "missing required param rejected")
	assert.Contains(t, err.Error(), "params invalid")
}

func TestRegistryFileOverridesBuiltins(t *testing.T) {
	r, err := NewRegistry(writeMessages(t, testMessages))
	require.NoError(t, err)

	t.Run("file template wins", func(t *testing.T) {
		tpl, ok := r.Template(IDAvailable)
		require.True(t, ok)
		assert.Equal(t, "Go go go", tpl.Subject)
	})

	t.Run("builtin kept when absent from file", func(t *testing.T) {
		_, ok := r.Template(IDProbeFailed)
		assert.True(t, ok)
	})

	t.Run("extra templates allowed", func(t *testing.T) {
		_, body, err := r.Render("custom_ping", map[string]any{"n": 7})
		require.NoError(t, err)
		assert.Equal(t, "pong 7", body)
	})
}

func TestRegistryUnknownTemplate(t *testing.T) {
	r := NewStatic()
	_, _, err := r.Render("no_such_template", nil)
	assert.Error(t, err)
}

func TestStaticRegistryHasAllWellKnownIDs(t *testing.T) {
	r := NewStatic()
	for _, id := range []string{IDAvailable, IDSoldOut, IDProbeFailed, IDStartup, IDTestEmail} {
		_, ok := r.Template(id)
		assert.True(t, ok, id)
	}
}

func TestRegistryRejectsUnknownFileKeys(t *testing.T) {
	_, err := NewRegistry(writeMessages(t, "messages:\n  a: {body: x}\nbogus: 1\n"))
	assert.Error(t, err)
}
