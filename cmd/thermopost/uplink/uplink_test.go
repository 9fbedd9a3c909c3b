package uplink

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/thermopost/helpers/cli"
	state_new "github.com/temoto/thermopost/internal/state/new"
	"github.com/temoto/thermopost/internal/tele"
	tele_api "github.com/temoto/thermopost/tele"
)

func TestExecLines(t *testing.T) {
	t.Parallel()

	mock := &tele.MockTransport{}
	ctx, g := state_new.NewTestContext(t, mock, `tele { max_retry = 2 }`)
	g.Sleep = func(context.Context, time.Duration) error { return nil }
	mock.Results = []error{nil, nil, errors.New("timeout")}

	input := `
ping
error disk on fire
send 21.5
stat
bogus
send hot
`
	require.NoError(t, cli.ExecLines(strings.NewReader(input), newExecutor(ctx)))

	calls := mock.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, tele_api.EndpointPing, calls[0].Endpoint)
	assert.True(t, calls[0].Check)
	assert.Equal(t, tele_api.EndpointError, calls[1].Endpoint)
	assert.JSONEq(t, `{"error":"disk on fire"}`, calls[1].Payload)
	assert.Equal(t, tele_api.EndpointTemperature, calls[2].Endpoint)
	assert.False(t, calls[2].Check)
	assert.Contains(t, calls[3].Payload, `"temperature":21.5`, "second attempt after failure")

	st := g.Stat.Snapshot()
	assert.Equal(t, uint32(1), st.Delivered)
	assert.Equal(t, uint32(2), st.Attempts)
	assert.Equal(t, uint32(1), st.Escalated)
}
