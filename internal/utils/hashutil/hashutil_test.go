package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSha3256Hash(t *testing.T) {
	// SHA3-256 of the empty string.
	assert.Equal(t, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", Sha3256Hash(nil))

	a := Sha3256Hash([]byte("dmi_secret"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Sha3256Hash([]byte("dmi_secret")))
	assert.NotEqual(t, a, Sha3256Hash([]byte("dmi_secreT")))
}

func TestBlake3Hash(t *testing.T) {
	a := Blake3Hash([]byte("frame"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Sha3256Hash([]byte("frame")))
}
