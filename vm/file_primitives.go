package vm

import (
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// FileHandle
// ---------------------------------------------------------------------------

// FileHandle wraps an open file. After Close the handle stays valid as a
// value but every operation on it fails.
type FileHandle struct {
	ID   string
	Path string
	Mode string
	file *os.File
}

// Closed reports whether the handle has been closed.
func (h *FileHandle) Closed() bool {
	return h.file == nil
}

// Close releases the file. Closing twice is a no-op.
func (h *FileHandle) Close() error {
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

func (h *FileHandle) String() string {
	if h.file == nil {
		return "<file closed>"
	}
	return "<file " + h.ID + ">"
}

var fileModes = map[string]int{
	"r":  os.O_RDONLY,
	"w":  os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	"a":  os.O_WRONLY | os.O_CREATE | os.O_APPEND,
	"r+": os.O_RDWR,
}

// ---------------------------------------------------------------------------
// File I/O Primitives
// ---------------------------------------------------------------------------

// ioOpen: path mode -> File | nil
func (vm *VM) ioOpen() {
	mode := vm.pop()
	path := vm.pop()
	if !path.IsString() || !mode.IsString() {
		vm.push(Nil)
		return
	}
	flags, ok := fileModes[mode.Str()]
	if !ok {
		vm.log.Debugf("open %s: unknown mode %q", path.Str(), mode.Str())
		vm.push(Nil)
		return
	}
	f, err := os.OpenFile(path.Str(), flags, 0644)
	if err != nil {
		vm.log.Debugf("open %s: %v", path.Str(), err)
		vm.push(Nil)
		return
	}
	h := &FileHandle{ID: uuid.NewString(), Path: path.Str(), Mode: mode.Str(), file: f}
	vm.handles.addFile(h)
	vm.log.Debugf("opened %s as %s", h.Path, h.ID)
	vm.push(FromFile(h))
}

// ioRead: handle size -> String | nil. A negative size reads to the end.
func (vm *VM) ioRead() {
	size := vm.pop()
	h := vm.pop().File()
	if h == nil || h.Closed() || !size.IsInt() {
		vm.push(Nil)
		return
	}
	var r io.Reader = h.file
	if size.Int() >= 0 {
		r = io.LimitReader(h.file, int64(size.Int()))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		vm.log.Debugf("read %s: %v", h.Path, err)
		vm.push(Nil)
		return
	}
	vm.push(FromString(string(data)))
}

// ioWrite: handle data -> Integer | nil
func (vm *VM) ioWrite() {
	data := vm.pop()
	h := vm.pop().File()
	if h == nil || h.Closed() || !data.IsString() {
		vm.push(Nil)
		return
	}
	n, err := io.WriteString(h.file, data.Str())
	if err != nil {
		vm.log.Debugf("write %s: %v", h.Path, err)
		vm.push(Nil)
		return
	}
	vm.push(FromInt(int32(n)))
}

// ioClose: handle -> Boolean
func (vm *VM) ioClose() {
	h := vm.pop().File()
	if h == nil || h.Closed() {
		vm.push(False)
		return
	}
	vm.handles.removeFile(h)
	vm.push(FromBool(h.Close() == nil))
}

// ioExists: path -> Boolean
func (vm *VM) ioExists() {
	path := vm.pop()
	if !path.IsString() {
		vm.push(False)
		return
	}
	_, err := os.Stat(path.Str())
	vm.push(FromBool(err == nil))
}

// ioRemove: path -> Boolean
func (vm *VM) ioRemove() {
	path := vm.pop()
	if !path.IsString() {
		vm.push(False)
		return
	}
	vm.push(FromBool(os.Remove(path.Str()) == nil))
}

// ioMkdir: path -> Boolean. Missing parents are created.
func (vm *VM) ioMkdir() {
	path := vm.pop()
	if !path.IsString() {
		vm.push(False)
		return
	}
	vm.push(FromBool(os.MkdirAll(path.Str(), 0755) == nil))
}

// ioListDir: path -> List of names (sorted) | nil
func (vm *VM) ioListDir() {
	path := vm.pop()
	if !path.IsString() {
		vm.push(Nil)
		return
	}
	entries, err := os.ReadDir(path.Str())
	if err != nil {
		vm.push(Nil)
		return
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	vm.push(stringsValue(names))
}

// ioCwd: -> String | nil
func (vm *VM) ioCwd() {
	dir, err := os.Getwd()
	if err != nil {
		vm.push(Nil)
		return
	}
	vm.push(FromString(dir))
}
