// Package decode converts sensor field values of unknown wire representation
// into float64. Device firmware versions differ in how they serialize floats:
// some publish plain JSON numbers, some the hex representation of the IEEE-754
// bit pattern, some a decimal string, and some the raw 4 little-endian bytes.
package decode

import (
	"encoding/binary"
	"math"
	"regexp"
	"strconv"
)

// Kind classifies the wire encoding of a single sensor field value.
type Kind int

const (
	// KindNumber is a plain numeric value.
	KindNumber Kind = iota
	// KindHexString is the hexadecimal representation (optionally 0x-prefixed)
	// of the 32-bit IEEE-754 bit pattern, little-endian on the wire.
	KindHexString
	// KindDecimalString is a decimal numeric string that is not a valid hex
	// pattern.
	KindDecimalString
	// KindBytes is a raw little-endian float32 byte sequence, either a
	// 4-byte slice or a 4-element byte array.
	KindBytes
	// KindUnknown means no recognized encoding applied; the value carries the
	// best-effort fallback (decimal parse of the original, else 0).
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindHexString:
		return "hex"
	case KindDecimalString:
		return "decimal"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is the result of decoding one sensor field.
type Value struct {
	Kind  Kind
	Float float64
}

// hexPattern intentionally matches bare digit strings like "123": a hex
// interpretation wins over a decimal one whenever both are possible.
var hexPattern = regexp.MustCompile(`^(0[xX])?[0-9a-fA-F]{1,8}$`)

// Field decodes one raw sensor field value. It never fails: unrecognized
// input falls back to a best-effort decimal parse and finally to 0, tagged
// KindUnknown so callers can tell a decode failure from a genuine zero.
func Field(raw any) Value {
	switch v := raw.(type) {
	case float64:
		return Value{Kind: KindNumber, Float: v}
	case float32:
		return Value{Kind: KindNumber, Float: float64(v)}
	case int:
		return Value{Kind: KindNumber, Float: float64(v)}
	case int64:
		return Value{Kind: KindNumber, Float: float64(v)}
	case string:
		if hexPattern.MatchString(v) {
			s := v
			if len(s) > 1 && (s[0:2] == "0x" || s[0:2] == "0X") {
				s = s[2:]
			}
			bits, err := strconv.ParseUint(s, 16, 32)
			if err == nil {
				return Value{Kind: KindHexString, Float: float32FromBits(uint32(bits))}
			}
			return fallback(v)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fallback(v)
		}
		return Value{Kind: KindDecimalString, Float: f}
	case []byte:
		if len(v) != 4 {
			return fallback(raw)
		}
		return Value{Kind: KindBytes, Float: float32LE(v)}
	case []any:
		b, ok := byteArray(v)
		if !ok {
			return fallback(raw)
		}
		return Value{Kind: KindBytes, Float: float32LE(b)}
	default:
		return fallback(raw)
	}
}

// float32FromBits reinterprets bits as a little-endian float32: the integer's
// 4 bytes written least-significant-first and read back as IEEE-754 single
// precision. Writing LE and reading LE cancel out, so this is a plain bit
// reinterpretation.
func float32FromBits(bits uint32) float64 {
	return float64(math.Float32frombits(bits))
}

func float32LE(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

// byteArray converts a decoded JSON array into 4 raw bytes if every element
// is an integral number in [0, 255].
func byteArray(v []any) ([]byte, bool) {
	if len(v) != 4 {
		return nil, false
	}
	out := make([]byte, 4)
	for i, e := range v {
		f, ok := e.(float64)
		if !ok || f != math.Trunc(f) || f < 0 || f > 255 {
			return nil, false
		}
		out[i] = byte(f)
	}
	return out, true
}

// fallback is the give-up path: a last decimal parse of the original value's
// string form, defaulting to 0.
func fallback(raw any) Value {
	if s, ok := raw.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Value{Kind: KindUnknown, Float: f}
		}
	}
	return Value{Kind: KindUnknown, Float: 0}
}

// Round2 rounds to exactly 2 decimal places. Applied before storage and again
// on every read path; re-rounding an already rounded value is a no-op.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
