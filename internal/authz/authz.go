package authz

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/casbin/casbin/v3"
)

//go:embed model.conf policy.csv
var embedFS embed.FS

const (
	ResourceContacts = "contacts"

	ActionRead   = "read"
	ActionExport = "export"
)

// Enforcer decides which token roles may act on which resources.
type Enforcer struct {
	enforcer *casbin.Enforcer
}

// NewEnforcer builds an enforcer from the embedded model and policy files.
func NewEnforcer() (*Enforcer, error) {
	dir, err := os.MkdirTemp("", "cmsweb-casbin-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := writeEmbedToDir(dir, "model.conf", "policy.csv"); err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(filepath.Join(dir, "model.conf"), filepath.Join(dir, "policy.csv"))
	if err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: e}, nil
}

func writeEmbedToDir(dir string, names ...string) error {
	for _, name := range names {
		data, err := embedFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
			return err
		}
	}
	return nil
}

// Enforce reports whether role may perform action on resource.
func (e *Enforcer) Enforce(role, resource, action string) (bool, error) {
	if role == "" {
		return false, nil
	}
	return e.enforcer.Enforce(role, resource, action)
}
