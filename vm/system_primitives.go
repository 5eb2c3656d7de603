package vm

import (
	"runtime"
	"time"
)

// ---------------------------------------------------------------------------
// System Primitives
// ---------------------------------------------------------------------------

// sysTime: -> Float seconds since the Unix epoch
func (vm *VM) sysTime() {
	vm.push(FromFloat(float64(time.Now().UnixNano()) / 1e9))
}

// sysSleep: seconds -> nil
func (vm *VM) sysSleep() {
	secs := vm.pop()
	if secs.IsNumber() && secs.Float() > 0 {
		time.Sleep(time.Duration(secs.Float() * float64(time.Second)))
	}
	vm.push(Nil)
}

// sysExit: code -> stops the run. A non-integer code exits with status 1.
func (vm *VM) sysExit() {
	code := vm.pop()
	status := 1
	if code.IsInt() {
		status = int(code.Int())
	}
	panic(&ExitError{Code: status})
}

// sysPlatform: -> "GOOS/GOARCH"
func (vm *VM) sysPlatform() {
	vm.push(FromString(runtime.GOOS + "/" + runtime.GOARCH))
}
