package soc

/*
#cgo LDFLAGS: -framework CoreFoundation
#include <stdlib.h>
#include <CoreFoundation/CoreFoundation.h>
*/
import "C"

import (
	"unsafe"

	"codeberg.org/mutker/socmon/internal/errors"
)

// cfObject owns exactly one CoreFoundation reference. Every reference
// obtained under the create/copy rule is wrapped here so each
// acquisition has one matching release on every exit path. The raw
// reference never leaves this package.
type cfObject struct {
	ref C.CFTypeRef
}

// ownCF wraps a reference obtained under the create/copy rule.
// A NULL reference yields nil; callers must check.
func ownCF(ref C.CFTypeRef) *cfObject {
	if ref == nil {
		return nil
	}
	return &cfObject{ref: ref}
}

// retainCF wraps a reference obtained under the get rule that must
// outlive its container. The extra retain is paired with Release.
func retainCF(ref C.CFTypeRef) *cfObject {
	if ref == nil {
		return nil
	}
	C.CFRetain(ref)
	return &cfObject{ref: ref}
}

// Release drops the reference. Safe on nil and after a prior Release;
// the underlying CFRelease runs at most once.
func (o *cfObject) Release() {
	if o == nil || o.ref == nil {
		return
	}
	C.CFRelease(o.ref)
	o.ref = nil
}

func (o *cfObject) isNull() bool {
	return o == nil || o.ref == nil
}

// dictionary returns the reference as a CFDictionaryRef after checking
// its declared runtime type. A mismatch is a soft failure.
func (o *cfObject) dictionary() (C.CFDictionaryRef, error) {
	errFactory := errors.New()

	var null C.CFDictionaryRef
	if o.isNull() {
		return null, errFactory.New(ErrNullHandle)
	}
	if C.CFGetTypeID(o.ref) != C.CFDictionaryGetTypeID() {
		return null, errFactory.WithData(ErrWrongType, "expected CFDictionary")
	}

	return C.CFDictionaryRef(unsafe.Pointer(o.ref)), nil
}

// dictionaryRef casts without a type check. Only for references whose
// producing API guarantees a dictionary.
func (o *cfObject) dictionaryRef() C.CFDictionaryRef {
	if o.isNull() {
		var null C.CFDictionaryRef
		return null
	}

	return C.CFDictionaryRef(unsafe.Pointer(o.ref))
}

// mutableDictionaryRef casts without a type check. CoreFoundation does
// not distinguish mutability at the type level; only for references
// whose producing API guarantees a mutable dictionary.
func (o *cfObject) mutableDictionaryRef() C.CFMutableDictionaryRef {
	if o.isNull() {
		var null C.CFMutableDictionaryRef
		return null
	}

	return C.CFMutableDictionaryRef(unsafe.Pointer(o.ref))
}

// newCFString creates a CFString under the create rule.
func newCFString(s string) *cfObject {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))

	ref := C.CFStringCreateWithCString(C.kCFAllocatorDefault, cs, C.kCFStringEncodingUTF8)

	return ownCF(C.CFTypeRef(unsafe.Pointer(ref)))
}

func (o *cfObject) stringRef() C.CFStringRef {
	if o.isNull() {
		var null C.CFStringRef
		return null
	}

	return C.CFStringRef(unsafe.Pointer(o.ref))
}

// goCFString converts a borrowed CFStringRef to a Go string. The
// reference is not released here.
func goCFString(ref C.CFStringRef) string {
	if ref == nil {
		return ""
	}

	if ptr := C.CFStringGetCStringPtr(ref, C.kCFStringEncodingUTF8); ptr != nil {
		return C.GoString(ptr)
	}

	length := C.CFStringGetLength(ref)
	bufSize := C.CFStringGetMaximumSizeForEncoding(length, C.kCFStringEncodingUTF8) + 1
	buf := make([]byte, int(bufSize))
	if C.CFStringGetCString(ref, (*C.char)(unsafe.Pointer(&buf[0])), bufSize, C.kCFStringEncodingUTF8) == 0 {
		return ""
	}

	return C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
}
