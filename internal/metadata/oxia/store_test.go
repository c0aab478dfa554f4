package oxia

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, "frames0", prefixEnd("frames/"))
	assert.Equal(t, "b", prefixEnd("a"))
	assert.Equal(t, "ab", prefixEnd("aa"))
	assert.Equal(t, "\xff\xff", prefixEnd("\xff"))
}

func TestNewRequiresAddressAndNamespace(t *testing.T) {
	_, err := New(context.Background(), Config{Namespace: "cairn"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{ServiceAddress: "localhost:6648"})
	assert.Error(t, err)
}
