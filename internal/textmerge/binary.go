package textmerge

import "bytes"

const binarySniffLen = 8000

// isBinary treats content with a NUL byte near the start as binary.
func isBinary(content []byte) bool {
	if len(content) > binarySniffLen {
		content = content[:binarySniffLen]
	}
	return bytes.IndexByte(content, 0) >= 0
}
