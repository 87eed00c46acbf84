package dnsx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockVerifyEmail(t *testing.T) {
	ok := NewMock([]string{"mx1.example.com"}, nil)
	assert.NoError(t, ok.VerifyEmail("jane@example.com"))
	assert.Error(t, ok.VerifyEmail("no-domain"), "addresses without a domain never resolve")

	bad := NewMock(nil, errors.New("no mx records for domain example.com"))
	assert.Error(t, bad.VerifyEmail("jane@example.com"))
}

func TestNewFallsBackToDefaultResolver(t *testing.T) {
	c := New("not a host port", nil).(*client)
	defer c.Stop(nil)

	assert.Equal(t, "1.1.1.1", c.resolverHost)
	assert.Equal(t, "53", c.resolverPort)
}

func TestNewSplitsResolver(t *testing.T) {
	c := New("127.0.0.53:5353", nil).(*client)
	defer c.Stop(nil)

	assert.Equal(t, "127.0.0.53", c.resolverHost)
	assert.Equal(t, "5353", c.resolverPort)
}
