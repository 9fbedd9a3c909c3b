package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()

	e1 := fmt.Errorf("first")
	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	assert.Equal(t, e1, FoldErrors([]error{nil, e1}))
	err := FoldErrors([]error{e1, fmt.Errorf("second")})
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

func TestSleep(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.Equal(t, context.Canceled, Sleep(ctx, time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}

func TestIntDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3*time.Second, IntSecondDefault(3, time.Minute))
	assert.Equal(t, time.Minute, IntSecondDefault(0, time.Minute))
	assert.Equal(t, 250*time.Millisecond, IntMillisecondDefault(250, time.Second))
	assert.Equal(t, time.Second, IntMillisecondDefault(-1, time.Second))
}
