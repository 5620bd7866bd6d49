// Package vmerr defines the error vocabulary shared by every layer of the
// virtual memory subsystem.
//
// Modeled on biscuit's defs.Err_t: a signed code rather than the error
// interface, since the fault handler and page-table code run on paths
// (page-fault service, interrupt-disabled TLB critical sections) where the
// allocation behind a wrapped error value is unwelcome. Zero means success;
// everything else is one of the well-known codes below.
package vmerr

// Code is the Err_t equivalent: zero on success, otherwise one of the
// named codes.
type Code int

const (
	// OK indicates success.
	OK Code = 0
	// OutOfMemory means a frame or control-structure allocation failed.
	OutOfMemory Code = -1
	// InvalidArgument means a permission set was empty, or a fault kind
	// was unrecognized.
	InvalidArgument Code = -2
	// ProtectionFault means the faulting address was outside every
	// region, a write hit a read-only PTE, or no address space exists
	// yet to service the fault against.
	ProtectionFault Code = -3
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case OutOfMemory:
		return "out of memory"
	case InvalidArgument:
		return "invalid argument"
	case ProtectionFault:
		return "protection fault"
	default:
		return "unknown vm error"
	}
}

// vmError adapts a non-zero Code to the standard error interface for
// callers that want one, such as cmd/vmctl.
type vmError Code

func (e vmError) Error() string { return Code(e).String() }

// Err converts c to a standard error, returning nil for OK.
func (c Code) Err() error {
	if c == OK {
		return nil
	}
	return vmError(c)
}
