// Package hooking lets observers attach to the components of a simulation
// without changing what the components decide.
package hooking

import (
	"reflect"
	"sync"
)

// HookPos names a point in a component where hooks are invoked.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	// Domain is the component that raises the hook.
	Domain Hookable

	// Pos identifies where the hook fires.
	Pos *HookPos

	// Item carries the subject of the hook, usually a process snapshot or a
	// process ID.
	Item any

	// Detail holds optional data, such as the outcome of a dispatch.
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
//
// Hooks only observe. A hook must not call back into the component that
// invokes it.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
//
// Hooks may be registered while the component is running, for example when a
// monitor attaches late, so the hook list is guarded.
type HookableBase struct {
	lock     sync.RWMutex
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hookList)
}

// Hooks returns a copy of the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	h.lock.RLock()
	defer h.lock.RUnlock()

	hooks := make([]Hook, len(h.hookList))
	copy(hooks, h.hookList)

	return hooks
}

// AcceptHook register a hook. Registering the same hook twice panics. Hooks
// of uncomparable types, such as HookFunc, are not checked.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if reflect.TypeOf(hook).Comparable() {
		for _, registered := range h.hookList {
			if registered == hook {
				panic("duplicated hook")
			}
		}
	}

	h.hookList = append(h.hookList, hook)
}

// InvokeHook triggers the registered Hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hookList
	h.lock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}
