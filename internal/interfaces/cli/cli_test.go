package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	returnsapp "github.com/returnflow/backend/internal/application/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(string) (*config.Config, error) {
	return &config.Config{
		App:   config.AppConfig{Name: "returns", Env: "test", Timezone: "UTC"},
		Log:   config.LogConfig{Level: "error", Format: "console", Output: "stderr"},
		Store: config.StoreConfig{Driver: config.StoreMemory},
		Admin: config.AdminConfig{Secret: "s3cret"},
	}, nil
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{LoadConfig: testConfig})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashSecret(t *testing.T) {
	out, err := run(t, "hash-secret", "s3cret")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestSweepOrphans(t *testing.T) {
	t.Run("requires the secret", func(t *testing.T) {
		_, err := run(t, "sweep-orphans")
		assert.ErrorIs(t, err, shared.ErrInvalidSecret)

		_, err = run(t, "sweep-orphans", "--secret", "nope")
		assert.ErrorIs(t, err, shared.ErrInvalidSecret)
	})

	t.Run("prints the sweep result", func(t *testing.T) {
		out, err := run(t, "sweep-orphans", "--secret", "s3cret")
		require.NoError(t, err)

		var res returnsapp.ReconcileResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Zero(t, res.Found)
	})
}

func TestRepairMissing(t *testing.T) {
	out, err := run(t, "repair-missing", "--secret", "s3cret")
	require.NoError(t, err)

	var res returnsapp.ReconcileResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Zero(t, res.Failed)
}

func TestCounter(t *testing.T) {
	t.Run("missing counter", func(t *testing.T) {
		out, err := run(t, "counter", "ncr")
		require.NoError(t, err)

		var view CounterView
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Equal(t, "ncr", view.Family)
		assert.False(t, view.Exists)
	})

	t.Run("unknown family", func(t *testing.T) {
		_, err := run(t, "counter", "invoice")
		assert.Error(t, err)
	})

	t.Run("rollback needs the secret", func(t *testing.T) {
		_, err := run(t, "rollback-counter", "return")
		assert.ErrorIs(t, err, shared.ErrInvalidSecret)
	})

	t.Run("rollback of an absent counter is a no-op", func(t *testing.T) {
		out, err := run(t, "rollback-counter", "return", "--secret", "s3cret")
		require.NoError(t, err)

		var view CounterView
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.False(t, view.Exists)
	})
}
