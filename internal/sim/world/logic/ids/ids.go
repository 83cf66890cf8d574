package ids

import (
	"strconv"
	"strings"
)

// ColumnLetters encodes a zero-based column as bijective base-26 letters:
// 0 -> A, 25 -> Z, 26 -> AA, 27 -> AB.
func ColumnLetters(col int) string {
	if col < 0 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	n := col + 1
	for n > 0 && i > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// ParseColumnLetters is the inverse of ColumnLetters.
func ParseColumnLetters(s string) (int, bool) {
	if s == "" || len(s) > 7 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return 0, false
		}
		n = n*26 + int(c-'A') + 1
	}
	return n - 1, true
}

func CellID(row, col int) string {
	if row < 0 || col < 0 {
		return ""
	}
	return ColumnLetters(col) + strconv.Itoa(row)
}

func ParseCellID(id string) (row, col int, ok bool) {
	id = strings.TrimSpace(id)
	i := 0
	for i < len(id) && (id[i] < '0' || id[i] > '9') {
		i++
	}
	if i == 0 || i == len(id) {
		return 0, 0, false
	}
	col, ok = ParseColumnLetters(id[:i])
	if !ok {
		return 0, 0, false
	}
	r, err := strconv.Atoi(id[i:])
	if err != nil || r < 0 {
		return 0, 0, false
	}
	return r, col, true
}
