package fb

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Device is a byte-addressable display sink. Only the capture loop
// writes to it.
type Device interface {
	io.WriterAt
	io.Closer
}

// OpenFile opens the device (or a plain file standing in for it) for
// positioned writes, like writing through a seekable stream.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, &DeviceOpenError{Path: path, Err: err}
	}
	return f, nil
}

// MmapDevice is a framebuffer mapped into memory.
type MmapDevice struct {
	fd  int
	mem []byte
}

// OpenMmap maps the framebuffer memory. The mapping length comes from
// FBIOGET_FSCREENINFO, falling back to the geometry size.
func OpenMmap(path string, g Geometry) (*MmapDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &DeviceOpenError{Path: path, Err: err}
	}

	size := g.Size()
	if finfo, err := getFixScreeninfo(fd); err == nil && int(finfo.SmemLen) >= size {
		size = int(finfo.SmemLen)
	}

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, &DeviceOpenError{Path: path, Err: fmt.Errorf("mmap: %w", err)}
	}
	return &MmapDevice{fd: fd, mem: mem}, nil
}

// WriteAt copies p into the mapping.
func (d *MmapDevice) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(d.mem)) {
		return 0, fmt.Errorf("write of %d bytes at %d outside %d byte mapping", len(p), off, len(d.mem))
	}
	return copy(d.mem[off:], p), nil
}

// Close unmaps the memory and closes the device.
func (d *MmapDevice) Close() error {
	e1 := unix.Munmap(d.mem)
	if e2 := unix.Close(d.fd); e2 != nil {
		return e2
	}
	return e1
}

// MemDevice is an in-memory display, used for dry runs and tests.
type MemDevice struct {
	mu  sync.Mutex
	buf []byte
}

// NewMemDevice allocates a display of the given geometry.
func NewMemDevice(g Geometry) *MemDevice {
	return &MemDevice{buf: make([]byte, g.Size())}
}

// WriteAt copies p into the buffer.
func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(d.buf)) {
		return 0, fmt.Errorf("write of %d bytes at %d outside %d byte buffer", len(p), off, len(d.buf))
	}
	return copy(d.buf[off:], p), nil
}

// Bytes returns a copy of the display contents.
func (d *MemDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buf...)
}

// Close is a no-op.
func (d *MemDevice) Close() error { return nil }
