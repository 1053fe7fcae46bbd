package pwdriver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/networkteam/pageprobe/driver"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapError(nil))

	err := mapError(errors.New("Timeout 5000ms exceeded."))
	assert.ErrorIs(t, err, driver.ErrTimeout)

	err = mapError(errors.New("strict mode violation"))
	assert.NotErrorIs(t, err, driver.ErrTimeout)
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ms := *timeout(ctx)
	assert.Greater(t, ms, 4000.0)
	assert.LessOrEqual(t, ms, 5000.0)

	assert.Equal(t, float64(fallbackTimeout.Milliseconds()), *timeout(context.Background()))
}
