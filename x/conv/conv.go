// Package conv formats integers into caller-owned buffers without fmt or
// strconv, so it stays cheap on the MCU.
package conv

// AppendUint appends the decimal form of n to dst, left-padded with zeros
// to at least width digits.
func AppendUint(dst []byte, n uint64, width int) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	for pad := width - (len(tmp) - i); pad > 0; pad-- {
		dst = append(dst, '0')
	}
	return append(dst, tmp[i:]...)
}

// ParseUint8 reads one or two decimal digits. Anything else is rejected.
func ParseUint8(s string) (uint8, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	var v uint8
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + (c - '0')
	}
	return v, true
}
