package netx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHostPort(t *testing.T) {
	host, port, err := SplitHostPort("127.0.0.1:7777")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 7777, port)

	host, port, err = SplitHostPort("[::1]:1024")
	require.NoError(t, err)
	assert.Equal(t, "::1", host)
	assert.Equal(t, 1024, port)
}

func TestSplitHostPort_Errors(t *testing.T) {
	_, _, err := SplitHostPort("no-port")
	assert.Error(t, err)

	_, _, err = SplitHostPort("host:http")
	assert.ErrorContains(t, err, `port "http"`)
}

func TestJoinHostPort(t *testing.T) {
	assert.Equal(t, "127.0.0.1:7777", JoinHostPort("127.0.0.1", 7777))
	assert.Equal(t, "[::1]:80", JoinHostPort("::1", 80))
}
