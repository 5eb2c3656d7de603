package vm

import (
	"errors"
	"sync"
)

// NativeModuleName is the name IMPORT_NATIVE uses for the OS primitives.
const NativeModuleName = "_native"

// ---------------------------------------------------------------------------
// Wrapper code objects
// ---------------------------------------------------------------------------

// primitiveWrapper builds a code object that loads its parameters in order,
// runs one primitive opcode and returns whatever the primitive pushed.
func primitiveWrapper(name string, op Opcode, params ...string) *Code {
	b := NewCodeBuilder(name, params...)
	for _, p := range params {
		b.EmitName(OpLoadLocal, p)
	}
	b.EmitOp(op)
	b.EmitOp(OpRet)
	return b.Build()
}

// buildUniversals creates the builtin table visible from every scope.
func (vm *VM) buildUniversals() Globals {
	tulis := NewCodeBuilder("tulis", "msg")
	tulis.EmitName(OpLoadLocal, "msg")
	tulis.EmitInt(OpPrint, 1)
	tulis.Const(Nil)
	tulis.EmitOp(OpRet)

	args := make([]Value, len(vm.config.Args))
	for i, a := range vm.config.Args {
		args[i] = FromString(a)
	}

	return Globals{
		"tulis":   FromCode(tulis.Build()),
		"teks":    FromCode(primitiveWrapper("teks", OpStr, "obj")),
		"tipe":    FromCode(primitiveWrapper("tipe", OpType, "obj")),
		"panjang": FromCode(primitiveWrapper("panjang", OpLen, "obj")),

		"_intrinsik_str_kecil":   FromCode(primitiveWrapper("_intrinsik_str_kecil", OpStrLower, "s")),
		"_intrinsik_str_besar":   FromCode(primitiveWrapper("_intrinsik_str_besar", OpStrUpper, "s")),
		"_intrinsik_str_temukan": FromCode(primitiveWrapper("_intrinsik_str_temukan", OpStrFind, "s", "sub")),
		"_intrinsik_str_ganti":   FromCode(primitiveWrapper("_intrinsik_str_ganti", OpStrReplace, "s", "old", "new")),

		"argumen_sistem": NewListValue(args...),
	}
}

// nativeEntries lists the callables of the native module.
var nativeEntries = []struct {
	name   string
	op     Opcode
	params []string
}{
	{"open", OpIOOpen, []string{"path", "mode"}},
	{"read", OpIORead, []string{"handle", "size"}},
	{"write", OpIOWrite, []string{"handle", "data"}},
	{"close", OpIOClose, []string{"handle"}},
	{"exists", OpIOExists, []string{"path"}},
	{"remove", OpIORemove, []string{"path"}},
	{"mkdir", OpIOMkdir, []string{"path"}},
	{"listdir", OpIOListDir, []string{"path"}},
	{"cwd", OpIOCwd, nil},
	{"time", OpSysTime, nil},
	{"sleep", OpSysSleep, []string{"seconds"}},
	{"exit", OpSysExit, []string{"code"}},
	{"platform", OpSysPlatform, nil},
	{"connect", OpNetConnect, []string{"host", "port"}},
	{"send", OpNetSend, []string{"sock", "data"}},
	{"recv", OpNetRecv, []string{"sock", "size"}},
	{"sock_close", OpNetClose, []string{"sock"}},
}

func (vm *VM) buildNativeEntries() Globals {
	g := make(Globals, len(nativeEntries))
	for _, e := range nativeEntries {
		g[e.name] = FromCode(primitiveWrapper(e.name, e.op, e.params...))
	}
	return g
}

// primitive runs a native-bridge opcode. Primitives report failure by
// pushing Nil or false and never raise.
func (vm *VM) primitive(op Opcode) {
	switch op {
	case OpIOOpen:
		vm.ioOpen()
	case OpIORead:
		vm.ioRead()
	case OpIOWrite:
		vm.ioWrite()
	case OpIOClose:
		vm.ioClose()
	case OpIOExists:
		vm.ioExists()
	case OpIORemove:
		vm.ioRemove()
	case OpIOMkdir:
		vm.ioMkdir()
	case OpIOListDir:
		vm.ioListDir()
	case OpIOCwd:
		vm.ioCwd()
	case OpSysTime:
		vm.sysTime()
	case OpSysSleep:
		vm.sysSleep()
	case OpSysExit:
		vm.sysExit()
	case OpSysPlatform:
		vm.sysPlatform()
	case OpNetConnect:
		vm.netConnect()
	case OpNetSend:
		vm.netSend()
	case OpNetRecv:
		vm.netRecv()
	case OpNetClose:
		vm.netClose()
	default:
		vm.fatal(ErrUnknownOpcode, "%s", op)
	}
}

// ---------------------------------------------------------------------------
// Handle table
// ---------------------------------------------------------------------------

// handleTable tracks open files and sockets so they can be released when
// the VM is closed.
type handleTable struct {
	mu      sync.Mutex
	files   map[*FileHandle]struct{}
	sockets map[*SocketHandle]struct{}
}

func newHandleTable() *handleTable {
	return &handleTable{
		files:   make(map[*FileHandle]struct{}),
		sockets: make(map[*SocketHandle]struct{}),
	}
}

func (t *handleTable) addFile(h *FileHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[h] = struct{}{}
}

func (t *handleTable) removeFile(h *FileHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, h)
}

func (t *handleTable) addSocket(h *SocketHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sockets[h] = struct{}{}
}

func (t *handleTable) removeSocket(h *SocketHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sockets, h)
}

// open returns the number of handles still open.
func (t *handleTable) open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files) + len(t.sockets)
}

func (t *handleTable) closeAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for h := range t.files {
		errs = append(errs, h.Close())
	}
	for h := range t.sockets {
		errs = append(errs, h.Close())
	}
	clear(t.files)
	clear(t.sockets)
	return errors.Join(errs...)
}

// OpenHandles returns the number of files and sockets not yet closed.
func (vm *VM) OpenHandles() int {
	return vm.handles.open()
}
