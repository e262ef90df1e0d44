// cmd/btbridge/main.go
//
// Builds the C shared library used by native hosts:
//
//	go build -buildmode=c-shared -o libbtbridge.so ./cmd/btbridge
package main

/*
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"bt-discovery/internal/bridge"
	"bt-discovery/internal/config"
	"bt-discovery/internal/utils"
)

var (
	initOnce sync.Once
	shared   *bridge.Bridge

	// C copy of the last StartBLEScanAndReturnJSON result
	jsonMu   sync.Mutex
	lastCStr *C.char
)

func instance() *bridge.Bridge {
	initOnce.Do(func() {
		cfg, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "btbridge: %v, using defaults\n", err)
			cfg = config.Default()
		}

		logger, err := utils.NewLogger(&cfg.Logging)
		if err != nil {
			logger = zap.NewNop()
		}

		shared, err = bridge.NewFromConfig(cfg, logger)
		if err != nil {
			logger.Error("Bridge unavailable", zap.Error(err))
		}
		if shared != nil {
			shared.RegisterScanCallback(deliver)
		}
	})
	return shared
}

//export StartBLEScan
func StartBLEScan() {
	if b := instance(); b != nil {
		b.StartScan()
	} else {
		deliver("[]")
	}
}

//export RegisterScanCallback
func RegisterScanCallback(cb C.scan_callback) {
	setCallback(cb)
}

//export StartBLEScanAndReturnJSON
func StartBLEScanAndReturnJSON() *C.char {
	data := []byte("[]")
	if b := instance(); b != nil {
		data = b.ScanJSON()
	}

	jsonMu.Lock()
	defer jsonMu.Unlock()

	freeLastLocked()
	lastCStr = C.CString(string(data))
	return lastCStr
}

//export StartBLEScanAndReturnJSONInto
func StartBLEScanAndReturnJSONInto(buf *C.char, capacity C.int) C.int {
	if buf == nil || capacity <= 0 {
		return -1
	}

	dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(capacity))
	b := instance()
	if b == nil {
		return C.int(bridge.CopyTerminated(dst, []byte("[]")))
	}
	return C.int(b.ScanJSONInto(dst))
}

//export ReleaseBridgeJSON
func ReleaseBridgeJSON() {
	jsonMu.Lock()
	defer jsonMu.Unlock()

	freeLastLocked()
	if b := instance(); b != nil {
		b.Release()
	}
}

func freeLastLocked() {
	if lastCStr != nil {
		C.free(unsafe.Pointer(lastCStr))
		lastCStr = nil
	}
}

//export ConnectToBLEDevice
func ConnectToBLEDevice(identifier *C.char) {
	if identifier == nil {
		return
	}
	if b := instance(); b != nil {
		b.Connect(C.GoString(identifier))
	}
}

//export DisconnectBLEDevice
func DisconnectBLEDevice() {
	if b := instance(); b != nil {
		b.Disconnect()
	}
}

func main() {}
