package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum_Deterministic(t *testing.T) {
	a := SumString("GET http://example.com/ ")
	b := SumString("GET http://example.com/ ")
	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
}

func TestSum_DifferentInput(t *testing.T) {
	a := SumString("GET http://example.com/cats ")
	b := SumString("GET http://example.com/dogs ")
	assert.NotEqual(t, a, b)
}

func TestKey_StringIsFixedWidthHex(t *testing.T) {
	for _, in := range []string{"", "a", "some much longer input with \x00 binary \xff bytes"} {
		s := SumString(in).String()
		assert.Len(t, s, Size*2)
		assert.Regexp(t, "^[0-9a-f]+$", s)
	}
}

func TestSum_BinaryDigestsStayDistinct(t *testing.T) {
	// digests are never decoded as text, so distinct inputs keep distinct keys
	seen := make(map[string]string)
	for i := 0; i < 2000; i++ {
		in := string(rune('a'+i%26)) + string(rune(i))
		key := SumString(in).String()
		if prev, ok := seen[key]; ok {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[key] = in
	}
}
