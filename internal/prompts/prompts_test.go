package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePromptsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWhenPathEmpty(t *testing.T) {
	set, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), set)
	assert.NoError(t, validate(set))
}

func TestLoad_OverlaysOnlyProvidedFields(t *testing.T) {
	path := writePromptsFile(t, `
prompts:
  extract:
    system: "Return JSON."
  format:
    user: "Products: {{products}} for {{query}}"
`)

	set, err := Load(path)
	require.NoError(t, err)

	defaults := Defaults()
	assert.Equal(t, "Return JSON.", set.Extract.System)
	assert.Equal(t, defaults.Extract.User, set.Extract.User)
	assert.Equal(t, "Products: {{products}} for {{query}}", set.Format.User)
	assert.Equal(t, defaults.Enhance, set.Enhance)
}

func TestLoad_RejectsTemplateWithoutPlaceholder(t *testing.T) {
	path := writePromptsFile(t, `
prompts:
  extract:
    user: "Extract features."
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompts.extract.user")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPrompt_Render(t *testing.T) {
	p := Prompt{User: "q={{query}} p={{products}} again={{query}}"}
	assert.Equal(t, "q=shoes p=[] again=shoes", p.Render("shoes", "[]"))
}
