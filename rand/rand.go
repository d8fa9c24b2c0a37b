package rand

import (
	"github.com/google/uuid"
)

// FillDeterministic fills b with pseudo-random bytes derived from seed using a
// linear congruential generator, taking the most significant byte of each
// step. The same seed always yields the same fill, so S1 is reproducible for
// a given server time.
func FillDeterministic(b []byte, seed uint32) {
	const a = 1664525
	const c = 1013904223
	v := seed
	for i := range b {
		v = a*v + c
		b[i] = byte(v >> 24)
	}
}

// GenerateUuid returns a UUID in string format (including hyphens).
func GenerateUuid() string {
	return uuid.NewString()
}
