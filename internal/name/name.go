// Package name derives container-facing names.
package name

// Hostname derives a container hostname from an image reference: the last
// path segment with every character outside [a-zA-Z0-9-] replaced by '-',
// truncated to the 63-byte hostname limit.
func Hostname(image string) string {
	seg := image
	for i := len(image) - 1; i >= 0; i-- {
		if image[i] == '/' {
			seg = image[i+1:]
			break
		}
	}
	out := make([]byte, 0, len(seg))
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	if len(out) > 63 {
		out = out[:63]
	}
	return string(out)
}
