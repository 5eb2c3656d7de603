package vm

import (
	"errors"
	"io"
	"net"
	"strconv"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SocketHandle
// ---------------------------------------------------------------------------

// SocketHandle wraps a TCP connection. After Close the handle stays valid as
// a value but every operation on it fails.
type SocketHandle struct {
	ID   string
	Addr string
	conn net.Conn
}

// Closed reports whether the connection has been closed.
func (h *SocketHandle) Closed() bool {
	return h.conn == nil
}

// Close releases the connection. Closing twice is a no-op.
func (h *SocketHandle) Close() error {
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

func (h *SocketHandle) String() string {
	if h.conn == nil {
		return "<socket closed>"
	}
	return "<socket " + h.ID + ">"
}

// ---------------------------------------------------------------------------
// Network Primitives
// ---------------------------------------------------------------------------

// netConnect: host port -> Socket | nil
func (vm *VM) netConnect() {
	port := vm.pop()
	host := vm.pop()
	if !host.IsString() {
		vm.push(Nil)
		return
	}
	var p string
	switch port.Kind() {
	case KindInteger:
		p = strconv.Itoa(int(port.Int()))
	case KindString:
		p = port.Str()
	default:
		vm.push(Nil)
		return
	}
	addr := net.JoinHostPort(host.Str(), p)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		vm.log.Debugf("connect %s: %v", addr, err)
		vm.push(Nil)
		return
	}
	h := &SocketHandle{ID: uuid.NewString(), Addr: addr, conn: conn}
	vm.handles.addSocket(h)
	vm.log.Debugf("connected to %s as %s", addr, h.ID)
	vm.push(FromSocket(h))
}

// netSend: sock data -> Integer | nil
func (vm *VM) netSend() {
	data := vm.pop()
	h := vm.pop().Socket()
	if h == nil || h.Closed() || !data.IsString() {
		vm.push(Nil)
		return
	}
	n, err := io.WriteString(h.conn, data.Str())
	if err != nil {
		vm.log.Debugf("send %s: %v", h.Addr, err)
		vm.push(Nil)
		return
	}
	vm.push(FromInt(int32(n)))
}

// maxRecvChunk bounds the bytes a single recv returns.
const maxRecvChunk = 64 << 10

// netRecv: sock size -> String | nil. Returns "" once the peer has closed.
func (vm *VM) netRecv() {
	size := vm.pop()
	h := vm.pop().Socket()
	if h == nil || h.Closed() || !size.IsInt() || size.Int() <= 0 {
		vm.push(Nil)
		return
	}
	buf := make([]byte, min(int(size.Int()), maxRecvChunk))
	n, err := h.conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		vm.log.Debugf("recv %s: %v", h.Addr, err)
		vm.push(Nil)
		return
	}
	vm.push(FromString(string(buf[:n])))
}

// netClose: sock -> Boolean
func (vm *VM) netClose() {
	h := vm.pop().Socket()
	if h == nil || h.Closed() {
		vm.push(False)
		return
	}
	vm.handles.removeSocket(h)
	vm.push(FromBool(h.Close() == nil))
}
