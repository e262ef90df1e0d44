// internal/bluetooth/address.go
package bluetooth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Address is a Bluetooth device address in display order (most significant
// byte first), as printed by ba2str.
type Address [6]byte

// String formats the address as XX:XX:XX:XX:XX:XX
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsZero reports whether every byte is zero
func (a Address) IsZero() bool {
	return a == Address{}
}

// AddressFromLE builds an Address from the little-endian byte order used by
// the HCI wire format (bdaddr_t).
func AddressFromLE(b []byte) Address {
	var a Address
	for i := 0; i < 6 && i < len(b); i++ {
		a[5-i] = b[i]
	}
	return a
}

// AddressFromUint64 builds an Address from the 48-bit integer form used by
// the Windows Bluetooth APIs.
func AddressFromUint64(v uint64) Address {
	var a Address
	for i := 0; i < 6; i++ {
		a[5-i] = byte(v >> (8 * i))
	}
	return a
}

// Uint64 returns the 48-bit integer form of the address
func (a Address) Uint64() uint64 {
	var v uint64
	for i := 0; i < 6; i++ {
		v = v<<8 | uint64(a[i])
	}
	return v
}

// ParseAddress parses XX:XX:XX:XX:XX:XX or XX-XX-XX-XX-XX-XX
func ParseAddress(s string) (Address, error) {
	var a Address

	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ':' || r == '-'
	})
	if len(parts) != 6 {
		return a, fmt.Errorf("%w: %q is not a bluetooth address", ErrInvalidIdentifier, s)
	}

	for i, part := range parts {
		if len(part) != 2 {
			return a, fmt.Errorf("%w: %q is not a bluetooth address", ErrInvalidIdentifier, s)
		}
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return a, fmt.Errorf("%w: %q is not a bluetooth address", ErrInvalidIdentifier, s)
		}
		a[i] = byte(b)
	}
	return a, nil
}

// NormalizeIdentifier validates a device identifier and returns its
// canonical form. Peripherals are identified by a UUID on macOS and by their
// address everywhere else.
func NormalizeIdentifier(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrInvalidIdentifier)
	}

	if addr, err := ParseAddress(id); err == nil {
		return addr.String(), nil
	}

	if u, err := uuid.Parse(id); err == nil {
		return strings.ToUpper(u.String()), nil
	}

	return "", fmt.Errorf("%w: %q is neither a UUID nor a bluetooth address", ErrInvalidIdentifier, id)
}
