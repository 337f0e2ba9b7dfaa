package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/deadpool/internal/config"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

func TestRetryOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := retryOptions(config.RetryConfig{})
		require.NoError(t, err)
		assert.Len(t, opts, 2)
	})

	t.Run("custom delays", func(t *testing.T) {
		_, err := retryOptions(config.RetryConfig{MaxAttempts: 5, InitialDelay: "200ms", MaxDelay: "2s", RecreateAfter: intPtr(3)})
		assert.NoError(t, err)
	})

	t.Run("invalid duration", func(t *testing.T) {
		_, err := retryOptions(config.RetryConfig{InitialDelay: "soon"})
		assert.True(t, errors.Is(err, deadpool.ErrConfiguration))
	})

	t.Run("max below initial", func(t *testing.T) {
		_, err := retryOptions(config.RetryConfig{InitialDelay: "10s", MaxDelay: "1s"})
		assert.True(t, errors.Is(err, deadpool.ErrConfiguration))
	})
}

func intPtr(v int) *int { return &v }

func TestRecreateAttempt(t *testing.T) {
	tests := []struct {
		name    string
		setting *int
		want    int
		wantErr bool
	}{
		{"absent keeps default", nil, deadpool.DefaultPoolRecreateAttempt, false},
		{"zero disables", intPtr(0), 0, false},
		{"explicit attempt", intPtr(3), 3, false},
		{"negative rejected", intPtr(-1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recreateAttempt(config.RetryConfig{RecreateAfter: tt.setting})
			if tt.wantErr {
				assert.ErrorIs(t, err, deadpool.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("does not override the environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("DEADPOOL_TEST_A=from-file\nDEADPOOL_TEST_B=from-file\n"), 0o600))
		t.Setenv("DEADPOOL_TEST_A", "from-env")
		t.Setenv("DEADPOOL_TEST_B", "")
		require.NoError(t, os.Unsetenv("DEADPOOL_TEST_B"))

		require.NoError(t, loadEnvFile(path))
		assert.Equal(t, "from-env", os.Getenv("DEADPOOL_TEST_A"))
		assert.Equal(t, "from-file", os.Getenv("DEADPOOL_TEST_B"))
	})
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, deadpool.ScoreResult{BasePoints: 100, BonusPoints: 5, TotalPoints: 105, TotalScore: 105}))
	assert.JSONEq(t, `{"basePoints":100,"bonusPoints":5,"totalPoints":105,"totalScore":105}`, buf.String())
}
