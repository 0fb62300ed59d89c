package keys

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// secureEraseNoop prevents the compiler from optimizing the clearing
// loop away: the cleared bytes feed an atomic counter that appears to
// have side effects.
var secureEraseNoop atomic.Uint64

// SecureErase overwrites the contents of a byte slice with zeros and
// takes pains to keep the compiler from eliding the writes.
//
// Remnants of the data may still exist in caches, registers or swap;
// this reduces exposure, it does not guarantee removal.
//
// See: http://www.daemonology.net/blog/2014-09-04-how-to-zero-a-buffer.html
func SecureErase(b []byte) {
	if len(b) == 0 {
		return
	}

	p := (*byte)(unsafe.Pointer(&b[0]))
	for i := 0; i < len(b); i++ {
		*(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(i))) = 0
	}

	runtime.KeepAlive(b)

	var sum uint64
	for i := 0; i < len(b); i++ {
		sum += uint64(b[i])
	}
	secureEraseNoop.Add(sum)
}
