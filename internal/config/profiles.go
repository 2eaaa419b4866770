package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes one named target environment in the profiles file.
//
//	staging:
//	  base_url: https://staging.example.test
//	  credentials:
//	    default: s3cret
type Profile struct {
	BaseURL string `yaml:"base_url"`
	// Credentials maps an account name to its password. The sample steps use
	// the "default" entry for the sign-in-with-default-credentials step.
	Credentials map[string]string `yaml:"credentials"`
}

// LoadProfiles parses a profiles file into its named environments.
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file %s: %w", path, err)
	}

	profiles := make(map[string]Profile)
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parsing profiles file %s: %w", path, err)
	}
	return profiles, nil
}

// ApplyProfile looks up run.environment in the profiles file and overlays its
// settings onto the config. With no environment selected it is a no-op. The
// selected profile is returned so the caller can hand its credentials to the
// step definitions.
func (c *Config) ApplyProfile() (Profile, error) {
	if c.Run.Environment == "" {
		return Profile{}, nil
	}

	profiles, err := LoadProfiles(c.Run.ProfilesFile)
	if err != nil {
		return Profile{}, err
	}

	profile, ok := profiles[c.Run.Environment]
	if !ok {
		return Profile{}, fmt.Errorf("profiles file %s does not define environment %q", c.Run.ProfilesFile, c.Run.Environment)
	}
	if profile.BaseURL == "" {
		return Profile{}, fmt.Errorf("environment %q does not set base_url", c.Run.Environment)
	}

	c.Run.BaseURL = profile.BaseURL
	return profile, nil
}
