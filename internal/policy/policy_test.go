package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "policy.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoad_PartialFileKeepsDefaultSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"sensitive_terms:\n  - ssh_key\n  - internal_hostname\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ssh_key", "internal_hostname"}, p.SensitiveTerms)
	assert.Equal(t, Default().FallbackSamples, p.FallbackSamples)
	assert.Equal(t, Default().Motifs, p.Motifs)
	assert.Equal(t, Default().StarterPatterns, p.StarterPatterns)
}

func TestLoad_FullFileOverridesEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sensitive_terms: [api_key]
fallback_samples: [one sample]
motifs:
  - name: Custom Motif
    keywords: [custom, keywords]
starter_patterns: ['custom.*pattern']
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"api_key"}, p.SensitiveTerms)
	assert.Equal(t, []string{"one sample"}, p.FallbackSamples)
	require.Len(t, p.Motifs, 1)
	assert.Equal(t, "Custom Motif", p.Motifs[0].Name)
	assert.Equal(t, []string{"custom.*pattern"}, p.StarterPatterns)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensitive_terms: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
