package vm

import (
	"syscall"

	"loxcore/internal/value"
)

// defineNatives installs the standard library this core owns: clock(), per
// spec §6 ("a standard library beyond a clock() builtin" is the Non-goal,
// i.e. clock() itself is in scope).
func (vm *VM) defineNatives() {
	vm.defineNative("clock", 0, func(args []value.Value) (value.Value, error) {
		return value.Number(processCPUSeconds()), nil
	})
}

// processCPUSeconds reports total user+system CPU time consumed by this
// process so far, seconds, matching the upstream source's
// `clock() / CLOCKS_PER_SEC` (wall-clock time would measure something else
// entirely: how long the process has been sitting idle).
func processCPUSeconds() float64 {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	user := float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
	sys := float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1e6
	return user + sys
}

// defineNative wraps fn as an ObjNative, checks its declared arity itself
// (natives do not go through the Closure arity check in call.go), and
// installs it as a global.
func (vm *VM) defineNative(name string, arity int, fn value.NativeFn) {
	checked := func(args []value.Value) (value.Value, error) {
		if len(args) != arity {
			return value.Nil, vm.runtimeError("Expected %d arguments but got %d.", arity, len(args))
		}
		return fn(args)
	}
	native := vm.heap.NewNative(name, checked)
	vm.globals.Set(name, value.FromObj(native))
}
