package rolemap

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry maps one provider role to one local role
type Entry struct {
	ProviderRole string `yaml:"provider_role"`
	LocalRole    string `yaml:"local_role"`
}

type mappingFile struct {
	Roles []Entry `yaml:"roles"`
}

// Mapping is an immutable snapshot of the role mapping. Watchers swap
// whole snapshots, so a Mapping never changes after Load returns it.
type Mapping struct {
	byProvider map[string]string
	managed    []string
}

// Load reads and validates a mapping file
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role mapping %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Mapping from raw YAML
func Parse(data []byte) (*Mapping, error) {
	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse role mapping: %w", err)
	}

	byProvider := make(map[string]string, len(file.Roles))
	managedSet := make(map[string]struct{}, len(file.Roles))
	for i, entry := range file.Roles {
		if entry.ProviderRole == "" || entry.LocalRole == "" {
			return nil, fmt.Errorf("role mapping entry %d is incomplete: provider_role and local_role are required", i)
		}
		if existing, ok := byProvider[entry.ProviderRole]; ok {
			return nil, fmt.Errorf("provider role %q mapped twice (%q and %q)", entry.ProviderRole, existing, entry.LocalRole)
		}
		byProvider[entry.ProviderRole] = entry.LocalRole
		managedSet[entry.LocalRole] = struct{}{}
	}

	managed := make([]string, 0, len(managedSet))
	for role := range managedSet {
		managed = append(managed, role)
	}
	sort.Strings(managed)

	return &Mapping{byProvider: byProvider, managed: managed}, nil
}

// LocalRole returns the local role mapped to a provider role, if any
func (m *Mapping) LocalRole(providerRole string) (string, bool) {
	role, ok := m.byProvider[providerRole]
	return role, ok
}

// ManagedRoles returns the distinct local roles under management, sorted
func (m *Mapping) ManagedRoles() []string {
	out := make([]string, len(m.managed))
	copy(out, m.managed)
	return out
}

// TargetRoles translates a provider role set into the local roles it
// implies. Unmapped provider roles are ignored, duplicates collapse.
func (m *Mapping) TargetRoles(providerRoles []string) []string {
	seen := make(map[string]struct{}, len(providerRoles))
	var out []string
	for _, pr := range providerRoles {
		local, ok := m.byProvider[pr]
		if !ok {
			continue
		}
		if _, dup := seen[local]; dup {
			continue
		}
		seen[local] = struct{}{}
		out = append(out, local)
	}
	sort.Strings(out)
	return out
}
