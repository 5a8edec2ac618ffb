package agent

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Role identifies one member of the closed stage-agent set
type Role string

const (
	RoleArchitect Role = "architect"
	RoleEngineer  Role = "engineer"
	RoleAuditor   Role = "auditor"
	RoleQALead    Role = "qa_lead"
)

// Profile is one role's prompt and generation settings
type Profile struct {
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	System      string  `yaml:"system"`
}

// Profiles holds the full role set loaded from the embedded defaults
type Profiles map[Role]Profile

// LoadProfiles parses the embedded role profiles
func LoadProfiles() (Profiles, error) {
	var raw map[string]Profile
	if err := yaml.Unmarshal(profilesYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse role profiles: %w", err)
	}

	profiles := make(Profiles, len(raw))
	for key, p := range raw {
		profiles[Role(key)] = p
	}

	for _, role := range []Role{RoleArchitect, RoleEngineer, RoleAuditor, RoleQALead} {
		p, ok := profiles[role]
		if !ok || p.System == "" {
			return nil, fmt.Errorf("role profile missing or empty: %s", role)
		}
	}

	return profiles, nil
}

// Get returns the profile for a role; panics on an unknown role since
// the role set is closed and validated at load time
func (p Profiles) Get(role Role) Profile {
	profile, ok := p[role]
	if !ok {
		panic(fmt.Sprintf("unknown agent role: %s", role))
	}
	return profile
}
