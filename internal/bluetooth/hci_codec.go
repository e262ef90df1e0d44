// internal/bluetooth/hci_codec.go
package bluetooth

import (
	"encoding/binary"
	"fmt"
)

// Layouts of the BlueZ ioctl structures (host byte order)
const (
	hciMaxDev       = 16
	devListHeader   = 4 // u16 dev_num, padding
	devReqSize      = 8 // u16 dev_id, padding, u32 dev_opt
	hciDevUpFlag    = 1 << 0
	inquiryReqSize  = 10 // u16 dev_id, u16 flags, u8 lap[3], u8 length, u8 num_rsp, pad
	inquiryInfoSize = 14 // bdaddr[6], pscan_rep_mode, pscan_period_mode, pscan_mode, dev_class[3], u16 clock_offset
	ireqCacheFlush  = 0x0001
)

// giacLAP is the General Inquiry Access Code 0x9E8B33 in wire order
var giacLAP = [3]byte{0x33, 0x8b, 0x9e}

// newDevListRequest allocates an hci_dev_list_req for up to hciMaxDev entries
func newDevListRequest() []byte {
	buf := make([]byte, devListHeader+hciMaxDev*devReqSize)
	binary.NativeEndian.PutUint16(buf[0:], hciMaxDev)
	return buf
}

// firstUpDevice returns the id of the first adapter with the UP flag set
func firstUpDevice(buf []byte) (uint16, bool) {
	if len(buf) < devListHeader {
		return 0, false
	}

	n := int(binary.NativeEndian.Uint16(buf[0:]))
	if capacity := (len(buf) - devListHeader) / devReqSize; n > capacity {
		n = capacity
	}

	for i := 0; i < n; i++ {
		off := devListHeader + i*devReqSize
		id := binary.NativeEndian.Uint16(buf[off:])
		opt := binary.NativeEndian.Uint32(buf[off+4:])
		if opt&hciDevUpFlag != 0 {
			return id, true
		}
	}
	return 0, false
}

// newInquiryRequest builds an hci_inquiry_req followed by room for the
// maximum number of inquiry_info responses.
func newInquiryRequest(devID uint16, cfg InquiryConfig) []byte {
	buf := make([]byte, inquiryReqSize+int(cfg.MaxResponses)*inquiryInfoSize)

	var flags uint16
	if cfg.FlushCache {
		flags |= ireqCacheFlush
	}

	binary.NativeEndian.PutUint16(buf[0:], devID)
	binary.NativeEndian.PutUint16(buf[2:], flags)
	copy(buf[4:7], giacLAP[:])
	buf[7] = cfg.Length
	buf[8] = cfg.MaxResponses
	return buf
}

// parseInquiryResponse decodes the responses the kernel wrote after the
// request header. num_rsp is updated in place by HCIINQUIRY.
func parseInquiryResponse(buf []byte) ([]Record, error) {
	if len(buf) < inquiryReqSize {
		return nil, fmt.Errorf("%w: short inquiry buffer (%d bytes)", ErrInquiryFailed, len(buf))
	}

	n := int(buf[8])
	if capacity := (len(buf) - inquiryReqSize) / inquiryInfoSize; n > capacity {
		return nil, fmt.Errorf("%w: %d responses reported, buffer holds %d", ErrInquiryFailed, n, capacity)
	}

	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		info := buf[inquiryReqSize+i*inquiryInfoSize:]
		class := uint32(info[9]) | uint32(info[10])<<8 | uint32(info[11])<<16
		records = append(records, Record{
			Address: AddressFromLE(info[0:6]).String(),
			Class:   class,
		})
	}
	return records, nil
}
