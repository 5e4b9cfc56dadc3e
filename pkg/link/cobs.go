package link

import "errors"

var (
	errCOBSZero      = errors.New("cobs: unexpected zero")
	errCOBSTruncated = errors.New("cobs: truncated block")
)

func cobsMaxEncodedLen(n int) int {
	return n + n/254 + 1
}

// cobsEncode appends the stuffed form of src to dst. The result has no zero
// bytes.
func cobsEncode(src, dst []byte) []byte {
	codeAt := len(dst)
	dst = append(dst, 0)
	code := byte(1)
	for _, b := range src {
		if b != 0 {
			dst = append(dst, b)
			code++
		}
		if b == 0 || code == 0xff {
			dst[codeAt] = code
			codeAt = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeAt] = code
	return dst
}

func cobsDecode(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		code := src[i]
		if code == 0 {
			return nil, errCOBSZero
		}
		i++
		end := i + int(code) - 1
		if end > len(src) {
			return nil, errCOBSTruncated
		}
		for ; i < end; i++ {
			if src[i] == 0 {
				return nil, errCOBSZero
			}
			out = append(out, src[i])
		}
		if code != 0xff && i < len(src) {
			out = append(out, 0)
		}
	}
	return out, nil
}
