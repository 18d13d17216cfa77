package auto

import (
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyungseok-lee/go-gcquake/pkg/gcquake"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

func TestAttach(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(types.EnvOptions, "1h,2h,23,grace=0")

	agent, err := attach(prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, agent)
	defer agent.Detach()

	assert.Equal(t, gcquake.Normal, agent.Classification())
}

func TestAttach_Unset(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(types.EnvOptions, "")
	require.NoError(t, os.Unsetenv(types.EnvOptions))

	agent, err := attach(prometheus.NewRegistry())
	assert.NoError(t, err)
	assert.Nil(t, agent)
}

func TestAttach_Malformed(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(types.EnvOptions, "1h,soon")

	_, err := attach(prometheus.NewRegistry())
	assert.True(t, errors.Is(err, gcquake.ErrInvalidOptions))
}
