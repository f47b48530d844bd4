// ABOUTME: System directory query with a growable buffer
// ABOUTME: Decodes the UTF-16 result up to the first NUL
package kdmapi

import "unicode/utf16"

const (
	// maxPath is the initial query size in UTF-16 units.
	maxPath = 260

	// maxLongPath is the largest path the platform can report.
	maxLongPath = 32767
)

// querySystemDirectory runs a length-queried system directory call.
//
// query fills buf and returns the number of units written excluding the
// terminator, or the required size including the terminator when buf is
// too small. The buffer grows to the reported size; a report that does not
// grow the buffer, or exceeds the longest platform path, is
// ErrSystemDirectoryTruncated.
func querySystemDirectory(query func(buf []uint16) (uint32, error)) (string, error) {
	size := maxPath
	for attempt := 0; attempt < 3; attempt++ {
		buf := make([]uint16, size)
		n, err := query(buf)
		if err != nil {
			return "", err
		}
		if int(n) < len(buf) {
			return decodeUTF16(buf[:n]), nil
		}
		if int(n) <= size || int(n) > maxLongPath {
			break
		}
		size = int(n)
	}
	return "", ErrSystemDirectoryTruncated
}

// decodeUTF16 decodes buf up to its first NUL.
func decodeUTF16(buf []uint16) string {
	for i, v := range buf {
		if v == 0 {
			buf = buf[:i]
			break
		}
	}
	return string(utf16.Decode(buf))
}
