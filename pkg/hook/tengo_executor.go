package hook

import (
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/glorpus-work/modshare/pkg/errors"
)

// TengoExecutor compiles and runs hook scripts.
type TengoExecutor struct {
	scripts map[Type]string
	mutex   sync.RWMutex
}

// NewTengoExecutor creates an empty executor.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{scripts: make(map[Type]string)}
}

// Execute runs the script registered for hookType, if any. A script can set
// the variable `err` to a non-empty string to fail the surrounding step.
func (e *TengoExecutor) Execute(hookType Type, ctx Context) error {
	e.mutex.RLock()
	script, exists := e.scripts[hookType]
	e.mutex.RUnlock()
	if !exists {
		return nil
	}

	instance := tengo.NewScript([]byte(script))
	instance.SetImports(stdlib.GetModuleMap("fmt", "os", "strings", "times", "text"))

	_ = instance.Add("packageName", ctx.PackageName)
	_ = instance.Add("packageVersion", ctx.PackageVersion)
	_ = instance.Add("folderName", ctx.FolderName)
	_ = instance.Add("packagePath", ctx.PackagePath)
	_ = instance.Add("installRoot", ctx.InstallRoot)
	for k, v := range ctx.Vars {
		_ = instance.Add(k, v)
	}

	compiled, err := instance.Run()
	if err != nil {
		return errors.Wrapf(ErrHookExecution, "%s: %v", hookType, err)
	}

	if errVar := compiled.Get("err"); errVar != nil {
		switch v := errVar.Value().(type) {
		case error:
			return errors.Wrap(ErrHookScript, v.Error())
		case string:
			if v != "" {
				return errors.Wrap(ErrHookScript, v)
			}
		}
	}
	return nil
}

// AddScript adds or replaces the script for hookType.
func (e *TengoExecutor) AddScript(hookType Type, script string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.scripts[hookType] = script
}

// RemoveScript removes the script for hookType.
func (e *TengoExecutor) RemoveScript(hookType Type) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.scripts, hookType)
}

// HasScript reports whether a script exists for hookType.
func (e *TengoExecutor) HasScript(hookType Type) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, exists := e.scripts[hookType]
	return exists
}
