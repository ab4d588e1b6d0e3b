// Package hook runs user-provided Tengo scripts around install and restore
// steps. Scripts live in the config directory as <type>.tengo files.
package hook

// Type identifies a lifecycle hook.
type Type string

// Supported hook types.
const (
	PreInstall  Type = "pre-install"
	PostInstall Type = "post-install"
	PreRestore  Type = "pre-restore"
	PostRestore Type = "post-restore"
)

// Hook is a script bound to a lifecycle point.
type Hook struct {
	Type    Type
	Content string
}

// Context carries the variables exposed to a hook script.
type Context struct {
	PackageName    string
	PackageVersion string
	FolderName     string
	PackagePath    string
	InstallRoot    string
	Vars           map[string]interface{}
}

// Manager defines the interface for managing lifecycle hooks.
type Manager interface {
	// Execute runs the hook of the given type; missing hooks are a no-op.
	Execute(hookType Type, ctx Context) error

	// AddHook registers or replaces a hook.
	AddHook(hook Hook) error

	// RemoveHook removes a hook of the specified type.
	RemoveHook(hookType Type) error

	// HasHook checks whether a hook of the specified type exists.
	HasHook(hookType Type) bool
}
