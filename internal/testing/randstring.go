package testing

import (
	"math/rand"
	"strings"
)

const charSet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandString generates random string of n symbols from lower- and uppercase alphabet, n defaults to 10
func RandString(n ...int) string {
	length := 10
	if len(n) > 0 && n[0] > 0 {
		length = n[0]
	}

	var out strings.Builder
	out.Grow(length)
	for i := 0; i < length; i++ {
		out.WriteByte(charSet[rand.Intn(len(charSet))])
	}
	return out.String()
}
