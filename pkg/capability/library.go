// Package capability loads a native plugin artifact, resolves its symbols
// into an immutable Table and publishes exactly one Table at a time.
package capability

// Library is an open native artifact.
type Library interface {
	// Lookup resolves a symbol to its address.
	Lookup(name string) (uintptr, error)
	// Call invokes the function at addr with integer/pointer arguments.
	Call(addr uintptr, args ...uintptr) uintptr
	// Close unloads the artifact. No address obtained from it may be used
	// afterwards.
	Close() error
}

// Opener opens artifacts.
type Opener interface {
	Open(path string) (Library, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Library, error)

// Open calls f(path).
func (f OpenerFunc) Open(path string) (Library, error) {
	return f(path)
}

// Symbol describes one entry the loader resolves.
type Symbol struct {
	Name     string
	Required bool
}

// Required returns required symbols for every name.
func Required(names ...string) []Symbol {
	out := make([]Symbol, len(names))
	for i, n := range names {
		out[i] = Symbol{Name: n, Required: true}
	}
	return out
}

// Optional returns optional symbols for every name.
func Optional(names ...string) []Symbol {
	out := make([]Symbol, len(names))
	for i, n := range names {
		out[i] = Symbol{Name: n}
	}
	return out
}
