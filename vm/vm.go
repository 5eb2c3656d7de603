package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config controls a VM's environment.
type Config struct {
	// Stdout receives PRINT output.
	Stdout io.Writer

	// Args is exposed to programs as argumen_sistem.
	Args []string

	// SearchPaths are the directories IMPORT resolves logical paths against,
	// in order.
	SearchPaths []string

	// Extensions are appended to a logical path when resolving an import,
	// tried in order.
	Extensions []string

	// MaxFrames bounds the frame stack. Zero means unlimited.
	MaxFrames int

	// Trace logs every instruction at debug level on the morphvm.trace logger.
	Trace bool
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Stdout:      os.Stdout,
		SearchPaths: []string{"."},
		Extensions:  []string{".mvm", ".fox.mvm"},
	}
}

// ---------------------------------------------------------------------------
// VM: the execution engine
// ---------------------------------------------------------------------------

// VM holds all interpreter state. A VM is not safe for concurrent use, but
// any number of VMs may exist side by side.
type VM struct {
	config Config

	frames []*Frame
	stack  []Value

	modules    map[string]*Module // IMPORT cache, keyed by logical path
	natives    map[string]*Module // IMPORT_NATIVE registry
	universals Globals
	main       Globals

	handles *handleTable

	halted bool

	log    commonlog.Logger
	tracer commonlog.Logger
}

// NewVM creates a VM with the universals and the native module installed.
func NewVM(config Config) *VM {
	def := DefaultConfig()
	if config.Stdout == nil {
		config.Stdout = def.Stdout
	}
	if len(config.SearchPaths) == 0 {
		config.SearchPaths = def.SearchPaths
	}
	if len(config.Extensions) == 0 {
		config.Extensions = def.Extensions
	}

	vm := &VM{
		config:  config,
		stack:   make([]Value, 0, 256),
		modules: make(map[string]*Module),
		natives: make(map[string]*Module),
		handles: newHandleTable(),
		log:     commonlog.GetLogger("morphvm.vm"),
		tracer:  commonlog.GetLogger("morphvm.trace"),
	}
	vm.universals = vm.buildUniversals()
	vm.RegisterNativeModule(NativeModuleName, vm.buildNativeEntries())
	return vm
}

// Config returns the VM's configuration.
func (vm *VM) Config() Config {
	return vm.config
}

// Universals returns the builtin table consulted after locals and globals.
func (vm *VM) Universals() Globals {
	return vm.universals
}

// Globals returns the global table of the most recent Run.
func (vm *VM) Globals() Globals {
	return vm.main
}

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []Value {
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// Module returns the cached module for a logical path.
func (vm *VM) Module(path string) (*Module, bool) {
	m, ok := vm.modules[path]
	return m, ok
}

// ---------------------------------------------------------------------------
// Running
// ---------------------------------------------------------------------------

// Run executes code as the program entry point with a fresh global table.
// It returns nil on normal completion or HALT, *UncaughtError for an
// unhandled exception, *ExitError for SYS_EXIT and *FatalError for
// host-level failures. Values left on the operand stack remain there.
func (vm *VM) Run(code *Code) (err error) {
	vm.main = make(Globals)
	vm.halted = false
	vm.frames = vm.frames[:0]
	defer vm.recoverRun(&err)

	vm.runCode(code, vm.main, nil)
	vm.frames = vm.frames[:0]
	return nil
}

// RunImage parses a program image and runs its root code object.
func (vm *VM) RunImage(data []byte) error {
	_, code, err := LoadImage(data)
	if err != nil {
		return err
	}
	return vm.Run(code)
}

// RunFile loads the image at path and runs it.
func (vm *VM) RunFile(path string) error {
	_, code, err := LoadImageFile(path)
	if err != nil {
		return err
	}
	vm.log.Infof("running %s", path)
	return vm.Run(code)
}

func (vm *VM) recoverRun(err *error) {
	r := recover()
	if r == nil {
		return
	}
	vm.frames = vm.frames[:0]
	switch e := r.(type) {
	case *FatalError:
		vm.log.Errorf("%v", e)
		*err = e
	case *UncaughtError:
		vm.log.Infof("uncaught exception: %s", describeThrown(e.Value))
		*err = e
	case *ExitError:
		vm.log.Infof("program exited with status %d", e.Code)
		*err = e
	default:
		fe := &FatalError{Err: fmt.Errorf("%w: %v", ErrInternal, r)}
		vm.log.Errorf("%v", fe)
		*err = fe
	}
}

// Close releases every file and socket the program left open.
func (vm *VM) Close() error {
	return vm.handles.closeAll()
}
