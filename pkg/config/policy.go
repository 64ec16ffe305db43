package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/finsuite/accessgate/pkg/observability"
	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// Policy is the operator-editable part of the decision policy: which
// modules bypass entitlement checks and which roles carry the super-admin
// bypass. It lives in a YAML file so it can change without a restart.
type Policy struct {
	AlwaysOnModules []permissions.Module `yaml:"always_on_modules"`
	SuperAdminRoles []tenant.RoleID      `yaml:"super_admin_roles"`
}

// LoadPolicy reads and parses the policy file.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return &p, nil
}

// PolicyWatcher reloads the policy file when it changes and hands each
// valid version to the registered callback. A file that fails to parse is
// logged and skipped; the previous policy stays in effect.
type PolicyWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Policy)
	logger   *observability.Logger
}

// NewPolicyWatcher creates a watcher for the policy file. onChange is
// called from the watcher goroutine for the initial load and for every
// subsequent valid version.
func NewPolicyWatcher(path string, logger *observability.Logger, onChange func(*Policy)) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating policy watcher: %w", err)
	}

	// Watch the directory, not the file: editors and configmap mounts
	// replace the file, which would silently detach a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching policy directory: %w", err)
	}

	return &PolicyWatcher{
		path:     path,
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Run loads the policy once, then blocks reloading it on every change until
// ctx is cancelled.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	if err := w.reload(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if err := w.reload(); err != nil {
				w.logger.WithError(err).WithField("path", w.path).Warn("policy reload failed, keeping previous policy")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("policy watcher error")
		}
	}
}

func (w *PolicyWatcher) reload() error {
	p, err := LoadPolicy(w.path)
	if err != nil {
		return err
	}
	w.logger.WithFields(map[string]interface{}{
		"always_on_modules": len(p.AlwaysOnModules),
		"super_admin_roles": len(p.SuperAdminRoles),
	}).Info("policy loaded")
	w.onChange(p)
	return nil
}

// Close stops the underlying filesystem watcher.
func (w *PolicyWatcher) Close() error {
	return w.watcher.Close()
}
