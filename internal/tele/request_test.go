package tele

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele_api "github.com/temoto/thermopost/tele"
)

func TestBufferPool(t *testing.T) {
	t.Parallel()

	p := NewBufferPool(2, 16)
	src := []byte(`{"a":1}`)
	r1, err := p.Alloc(tele_api.EndpointTemperature, src)
	require.NoError(t, err)
	src[2] = 'X'
	assert.Equal(t, `{"a":1}`, string(r1.Payload), "payload must be owned copy")
	assert.Equal(t, tele_api.EndpointTemperature, r1.Endpoint)
	assert.Equal(t, 1, p.Free())

	r2, err := p.Alloc(tele_api.EndpointTemperature, []byte("2"))
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)

	_, err = p.Alloc(tele_api.EndpointTemperature, []byte("3"))
	require.Error(t, err)
	assert.Equal(t, ErrAlloc, errors.Cause(err))

	p.Release(r1)
	assert.Nil(t, r1.Payload)
	assert.Equal(t, 1, p.Free())
	assert.Panics(t, func() { p.Release(r1) })

	r3, err := p.Alloc(tele_api.EndpointTemperature, []byte("3"))
	require.NoError(t, err)
	assert.Equal(t, "3", string(r3.Payload))
	assert.Equal(t, "2", string(r2.Payload), "reused buffer must not alias live request")
}

func TestBufferPoolOversize(t *testing.T) {
	t.Parallel()

	p := NewBufferPool(1, 4)
	_, err := p.Alloc(tele_api.EndpointTemperature, []byte("12345"))
	require.Error(t, err)
	assert.Equal(t, ErrAlloc, errors.Cause(err))
	assert.Equal(t, 1, p.Free(), "failed alloc must not take buffer")
}
