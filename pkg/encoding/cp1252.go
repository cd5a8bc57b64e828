// Package encoding provides text encoding utilities for KotOR model files.
// The engine stores names as single-byte Windows-1252 strings.
package encoding

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// UTF8ToWindows1252 converts a UTF-8 string to Windows-1252 bytes.
// Runes outside the code page are replaced with '?' so the output length
// always equals the rune count of s.
func UTF8ToWindows1252(s string) []byte {
	result := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		result = append(result, b)
	}
	return result
}

// Windows1252ToUTF8 converts Windows-1252 bytes to a UTF-8 string.
// Valid UTF-8 input is returned unchanged.
func Windows1252ToUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoder := charmap.Windows1252.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// EncodedLen returns the number of bytes s occupies once encoded.
func EncodedLen(s string) int {
	return utf8.RuneCountInString(s)
}

// FixedString encodes s into a zero-padded field of the given size.
// Input longer than size is truncated.
func FixedString(s string, size int) []byte {
	result := make([]byte, size)
	copy(result, UTF8ToWindows1252(s))
	return result
}

// TrimNullString removes trailing null bytes and decodes the rest.
func TrimNullString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return Windows1252ToUTF8(data)
}
