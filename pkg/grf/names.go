package grf

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// DecodeName converts an EUC-KR encoded entry name to UTF-8.
// Plain ASCII and names that fail to decode are returned as-is.
func DecodeName(raw []byte) string {
	ascii := true
	for _, b := range raw {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(raw)
	}

	result, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(result)
}

// EncodeName converts a UTF-8 name to EUC-KR, falling back to the raw bytes.
func EncodeName(name string) []byte {
	result, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(name))
	if err != nil {
		return []byte(name)
	}
	return result
}

// NormalizePath converts backslashes to slashes and lowercases the path,
// matching the case-insensitive lookup the game client performs.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
