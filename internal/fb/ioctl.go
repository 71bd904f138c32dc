package fb

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ioctlGetVScreenInfo = 0x4600 // FBIOGET_VSCREENINFO
	ioctlGetFScreenInfo = 0x4602 // FBIOGET_FSCREENINFO
)

// BitField mirrors struct fb_bitfield.
type BitField struct {
	Offset   uint32
	Length   uint32
	MsbRight uint32
}

// VarScreeninfo mirrors struct fb_var_screeninfo.
type VarScreeninfo struct {
	Xres, Yres                uint32
	XresVirtual, YresVirtual  uint32
	Xoffset, Yoffset          uint32
	BitsPerPixel, Grayscale   uint32
	Red, Green, Blue, Transp  BitField
	Nonstd, Activate          uint32
	Height, Width             uint32
	AccelFlags, Pixclock      uint32
	LeftMargin, RightMargin   uint32
	UpperMargin, LowerMargin  uint32
	HsyncLen, VsyncLen, Sync  uint32
	Vmode, Rotate, Colorspace uint32
	Reserved                  [4]uint32
}

// FixScreeninfo mirrors struct fb_fix_screeninfo. The kernel keeps the
// unsigned long fields pointer sized, hence uintptr.
type FixScreeninfo struct {
	ID           [16]byte
	SmemStart    uintptr
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	Xpanstep     uint16
	Ypanstep     uint16
	Ywrapstep    uint16
	LineLength   uint32
	MmioStart    uintptr
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	Reserved     [2]uint16
}

func getVarScreeninfo(fd int) (VarScreeninfo, error) {
	var vinfo VarScreeninfo
	_, _, eno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlGetVScreenInfo, uintptr(unsafe.Pointer(&vinfo)))
	if eno != 0 {
		return vinfo, eno
	}
	return vinfo, nil
}

func getFixScreeninfo(fd int) (FixScreeninfo, error) {
	var finfo FixScreeninfo
	_, _, eno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlGetFScreenInfo, uintptr(unsafe.Pointer(&finfo)))
	if eno != 0 {
		return finfo, eno
	}
	return finfo, nil
}
