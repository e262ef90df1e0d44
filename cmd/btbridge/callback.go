package main

/*
#include <stdlib.h>
#include "bridge.h"

static void invoke_scan_callback(scan_callback cb, const char *json) {
	if (cb != NULL) {
		cb(json);
	}
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

var (
	callbackMu sync.Mutex
	callback   C.scan_callback
)

func setCallback(cb C.scan_callback) {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	callback = cb
}

// deliver hands json to the registered C callback. The C string is freed
// when the callback returns.
func deliver(json string) {
	callbackMu.Lock()
	cb := callback
	callbackMu.Unlock()

	if cb == nil {
		return
	}

	cs := C.CString(json)
	defer C.free(unsafe.Pointer(cs))
	C.invoke_scan_callback(cb, cs)
}
