package hook

import (
	"os"
	"path/filepath"

	"github.com/glorpus-work/modshare/pkg/errors"
)

// DefaultManager is the default implementation of Manager.
type DefaultManager struct {
	executor *TengoExecutor
}

// NewManager creates an empty hook manager.
func NewManager() *DefaultManager {
	return &DefaultManager{executor: NewTengoExecutor()}
}

// Execute runs the hook of the given type with the given context.
func (m *DefaultManager) Execute(hookType Type, ctx Context) error {
	if !m.HasHook(hookType) {
		return nil
	}
	ctxCopy := ctx
	if ctxCopy.Vars == nil {
		ctxCopy.Vars = make(map[string]interface{})
	}
	return m.executor.Execute(hookType, ctxCopy)
}

// AddHook registers or replaces a hook.
func (m *DefaultManager) AddHook(hook Hook) error {
	if hook.Type == "" {
		return ErrHookTypeEmpty
	}
	m.executor.AddScript(hook.Type, hook.Content)
	return nil
}

// RemoveHook removes a hook of the specified type.
func (m *DefaultManager) RemoveHook(hookType Type) error {
	if hookType == "" {
		return ErrHookTypeEmpty
	}
	m.executor.RemoveScript(hookType)
	return nil
}

// HasHook checks whether a hook of the specified type exists.
func (m *DefaultManager) HasHook(hookType Type) bool {
	return m.executor.HasScript(hookType)
}

// LoadFromDir loads hook scripts from dir, expecting one <type>.tengo file
// per lifecycle point. A missing directory is not an error.
func (m *DefaultManager) LoadFromDir(dir string) error {
	for _, hookType := range []Type{PreInstall, PostInstall, PreRestore, PostRestore} {
		path := filepath.Join(dir, string(hookType)+".tengo")
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "failed to load hook %s", hookType)
		}
		m.executor.AddScript(hookType, string(content))
	}
	return nil
}
