package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"occupancy-status-backend/config"
)

func TestAppGraphIsValid(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	require.NoError(t, fx.ValidateApp(appOptions()))
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestAppServesHealthz(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	port := freePort(t)

	app := fxtest.New(t,
		appOptions(),
		fx.Decorate(func(cfg *config.Config) *config.Config {
			cfg.Server.Port = port
			cfg.Push = config.Default().Push
			return cfg
		}),
		fx.NopLogger,
	)
	app.RequireStart()
	defer app.RequireStop()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewConfig_ExplicitPathMustExist(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "typo.yaml"))
	_, err := newConfig()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewConfig_DefaultPathIsOptional(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := newConfig()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestNewPush(t *testing.T) {
	cfg := config.Default()

	disabled := newPush(cfg, zap.NewNop())
	assert.Nil(t, disabled.options)
	assert.Nil(t, disabled.store)

	cfg.Push.PublicKey = "public"
	cfg.Push.PrivateKey = "private"
	cfg.Push.Subject = "mailto:ops@example.com"
	enabled := newPush(cfg, zap.NewNop())
	require.NotNil(t, enabled.options)
	assert.Equal(t, "public", enabled.options.VAPIDPublicKey)
	assert.Equal(t, cfg.Push.TTL, enabled.options.TTL)
	assert.NotNil(t, enabled.store)
}

func TestNewShutdownTimeout(t *testing.T) {
	cfg := config.Default()
	assert.EqualValues(t, 5_000_000_000, newShutdownTimeout(cfg))
}
