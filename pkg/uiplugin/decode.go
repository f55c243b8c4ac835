package uiplugin

import (
	"fmt"
	"unsafe"
)

// LogLevel mirrors the plugin's LogLevel enum.
type LogLevel int32

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "Trace"
	case LogDebug:
		return "Debug"
	case LogInfo:
		return "Info"
	case LogWarn:
		return "Warn"
	case LogError:
		return "Error"
	default:
		return fmt.Sprintf("Level(%d)", int32(l))
	}
}

// rawFlatNode has the memory layout of the C FlatNode struct.
type rawFlatNode struct {
	Ptr       uintptr
	ParentPtr uintptr
	ClassName uintptr
	X, Y      int16
	W, H      int16
	Hidden    bool
	DebugID   uintptr
}

// FlatNode is one object of the plugin's UI tree in pre-order.
type FlatNode struct {
	Ptr       uintptr
	ParentPtr uintptr
	ClassName string
	X, Y      int16
	W, H      int16
	Hidden    bool
	DebugID   uintptr
}

// Area mirrors lv_area_t with 32-bit coordinates.
type Area struct {
	X1, Y1, X2, Y2 int32
}

// Width returns the horizontal extent.
func (a Area) Width() int32 { return a.X2 - a.X1 }

// Height returns the vertical extent.
func (a Area) Height() int32 { return a.Y2 - a.Y1 }

// Union returns the bounding box of a and b.
func (a Area) Union(b Area) Area {
	return Area{
		X1: min(a.X1, b.X1),
		Y1: min(a.Y1, b.Y1),
		X2: max(a.X2, b.X2),
		Y2: max(a.Y2, b.Y2),
	}
}

// maxCString bounds GoString against unterminated input.
const maxCString = 1 << 16

// GoString copies the NUL-terminated C string at p.
func GoString(p uintptr) string {
	if p == 0 {
		return ""
	}
	base := unsafe.Pointer(p)
	n := 0
	for n < maxCString && *(*byte)(unsafe.Add(base, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(base), n))
}

// DecodeFlatNodes copies count FlatNode structs starting at p.
func DecodeFlatNodes(p uintptr, count uintptr) []FlatNode {
	if p == 0 || count == 0 {
		return nil
	}
	raw := unsafe.Slice((*rawFlatNode)(unsafe.Pointer(p)), count)
	out := make([]FlatNode, len(raw))
	for i, r := range raw {
		name := "<null>"
		if r.ClassName != 0 {
			name = GoString(r.ClassName)
		}
		out[i] = FlatNode{
			Ptr:       r.Ptr,
			ParentPtr: r.ParentPtr,
			ClassName: name,
			X:         r.X,
			Y:         r.Y,
			W:         r.W,
			H:         r.H,
			Hidden:    r.Hidden,
			DebugID:   r.DebugID,
		}
	}
	return out
}

// DecodeArea copies the lv_area_t at p.
func DecodeArea(p uintptr) (Area, bool) {
	if p == 0 {
		return Area{}, false
	}
	return *(*Area)(unsafe.Pointer(p)), true
}

func boolArg(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}
