package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gravyprompts/discovery/secret"
)

// Load reads path and returns a validated configuration with secrets
// resolved.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.ResolveSecrets(ctx, nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML, expanding the environment in every scalar, and
// applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if len(doc.Content) > 0 {
		if err := expandNode(&doc, ""); err != nil {
			return nil, err
		}
		if err := doc.Decode(cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ResolveSecrets resolves secretref values in credential fields. A nil
// resolver uses the built-in env and file providers configured by
// c.Secrets.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	if r == nil {
		var err error
		r, err = secret.NewResolverFromRegistry(!c.Secrets.AllowEmpty, secret.DefaultRegistry, map[string]map[string]any{
			"env":  nil,
			"file": {"dir": c.Secrets.FileDir},
		})
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		defer r.Close()
	}

	err := r.ResolveFields(ctx, map[string]*string{
		"auth.secret":           &c.Auth.Secret,
		"aws.access_key_id":     &c.AWS.AccessKeyID,
		"aws.secret_access_key": &c.AWS.SecretAccessKey,
		"aws.session_token":     &c.AWS.SessionToken,
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// expandNode expands the environment in scalar values below n. Mapping keys
// are left alone.
func expandNode(n *yaml.Node, path string) error {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for i, child := range n.Content {
			p := path
			if n.Kind == yaml.SequenceNode {
				p = fmt.Sprintf("%s[%d]", path, i)
			}
			if err := expandNode(child, p); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			p := n.Content[i].Value
			if path != "" {
				p = path + "." + p
			}
			if err := expandNode(n.Content[i+1], p); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if !strings.Contains(n.Value, "$") {
			return nil
		}
		v, err := secret.ExpandEnvStrict(n.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		n.Value = v
		if n.Style == 0 {
			// Re-resolve so an expanded "200" decodes into an int field.
			n.Tag = ""
		}
	}
	return nil
}
