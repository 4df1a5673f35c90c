package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/third-eye-sec/thirdeye/internal/conf"
)

func TestNewDisabledReturnsNoop(t *testing.T) {
	t.Parallel()

	n, err := New(conf.NotifySettings{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, NoopNotifier{}, n)
	assert.NoError(t, n.Send(context.Background(), "t", "b", ""))
}

func TestNewEnabledWithoutURLs(t *testing.T) {
	t.Parallel()

	_, err := New(conf.NotifySettings{Enabled: true})
	assert.Error(t, err)
}

func TestNewEnabledWithInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := New(conf.NotifySettings{Enabled: true, URLs: []string{"not-a-service://"}})
	assert.Error(t, err)
}

func TestNewEnabledWithGenericWebhook(t *testing.T) {
	t.Parallel()

	n, err := New(conf.NotifySettings{
		Enabled: true,
		URLs:    []string{"generic://localhost:9/hook"},
	})
	require.NoError(t, err)
	assert.IsType(t, &ShoutrrrNotifier{}, n)
}
