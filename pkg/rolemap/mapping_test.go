package rolemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMapping = `
roles:
  - provider_role: rol_admin
    local_role: admin
  - provider_role: rol_staff
    local_role: staff
  - provider_role: rol_staff_legacy
    local_role: staff
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleMapping))
	require.NoError(t, err)

	local, ok := m.LocalRole("rol_admin")
	assert.True(t, ok)
	assert.Equal(t, "admin", local)

	_, ok = m.LocalRole("rol_unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"admin", "staff"}, m.ManagedRoles(),
		"managed roles must be distinct and sorted")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", "roles: ["},
		{"missing local role", "roles:\n  - provider_role: rol_x"},
		{"duplicate provider role", "roles:\n  - {provider_role: rol_x, local_role: a}\n  - {provider_role: rol_x, local_role: b}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestTargetRoles(t *testing.T) {
	m, err := Parse([]byte(sampleMapping))
	require.NoError(t, err)

	tests := []struct {
		name     string
		provider []string
		want     []string
	}{
		{"empty", nil, nil},
		{"single", []string{"rol_admin"}, []string{"admin"}},
		{"unmapped ignored", []string{"rol_admin", "rol_unknown"}, []string{"admin"}},
		{"two provider roles one local", []string{"rol_staff", "rol_staff_legacy"}, []string{"staff"}},
		{"sorted output", []string{"rol_staff", "rol_admin"}, []string{"admin", "staff"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.TargetRoles(tt.provider))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "role-mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMapping), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "staff"}, m.ManagedRoles())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	m, err := Parse([]byte(sampleMapping))
	require.NoError(t, err)
	assert.Same(t, m, NewStatic(m).Current())
}
