package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Live)
	assert.Equal(t, GoalImpact, cfg.GoalMode)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	t.Run("bad goal mode", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.GoalMode = "WORLD_DOMINATION"
		assert.Error(t, cfg.Validate())
	})

	t.Run("quiet hours out of range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.QuietHours.Start = 24
		assert.Error(t, cfg.Validate())
	})

	t.Run("intensity bounds inverted", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Intensity.MinLevel = 4
		cfg.Intensity.MaxLevel = 2
		assert.Error(t, cfg.Validate())
	})

	t.Run("default intensity outside bounds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Intensity.DefaultLevel = 9
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad platform mode", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Platforms.Mode = "roundrobin"
		assert.Error(t, cfg.Validate())
	})

	t.Run("base probs must sum to one", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Selector.BaseProbs["POST_PROPOSAL"] = 0.9
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})
}

func TestInQuietHours(t *testing.T) {
	cfg := DefaultConfig() // 23..7, wraps midnight
	at := func(h int) time.Time {
		return time.Date(2026, 8, 24, h, 30, 0, 0, time.UTC)
	}

	assert.True(t, cfg.InQuietHours(at(23)))
	assert.True(t, cfg.InQuietHours(at(2)))
	assert.True(t, cfg.InQuietHours(at(6)))
	assert.True(t, cfg.InQuietHours(at(7)), "the end hour is the last quiet hour")
	assert.False(t, cfg.InQuietHours(at(8)))
	assert.False(t, cfg.InQuietHours(at(12)))
	assert.False(t, cfg.InQuietHours(at(22)))

	t.Run("non-wrapping window", func(t *testing.T) {
		cfg.QuietHours.Start, cfg.QuietHours.End = 9, 17
		assert.True(t, cfg.InQuietHours(at(9)))
		assert.True(t, cfg.InQuietHours(at(16)))
		assert.True(t, cfg.InQuietHours(at(17)), "the end hour is the last quiet hour")
		assert.False(t, cfg.InQuietHours(at(18)))
		assert.False(t, cfg.InQuietHours(at(8)))
	})

	t.Run("degenerate window never matches", func(t *testing.T) {
		cfg.QuietHours.Start, cfg.QuietHours.End = 5, 5
		assert.False(t, cfg.InQuietHours(at(5)))
	})

	t.Run("disabled window never matches", func(t *testing.T) {
		cfg.QuietHours.Enabled = false
		cfg.QuietHours.Start, cfg.QuietHours.End = 0, 23
		assert.False(t, cfg.InQuietHours(at(12)))
	})
}

func TestRuntimeTogglesConcurrent(t *testing.T) {
	cfg := DefaultConfig()

	var wg sync.WaitGroup
	for n := 0; n < 4; n++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				cfg.SetLive(i%2 == 0)
				cfg.SetGoalMode(GoalFame)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = cfg.IsLive()
				_ = cfg.CurrentGoalMode()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, GoalFame, cfg.CurrentGoalMode())
}

func TestWeightsFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.GoalWeights[GoalFame], cfg.WeightsFor("fame"))
	assert.Equal(t, cfg.GoalWeights[GoalImpact], cfg.WeightsFor("NOT_A_MODE"))
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 5*time.Minute, cfg.GetBreakerReset())
	assert.Equal(t, 60*time.Second, cfg.GetRateLimitWindow())

	cfg.LLM.Timeout = "nonsense"
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
	cfg.Breaker.ResetAfter = ""
	assert.Equal(t, 5*time.Minute, cfg.GetBreakerReset())
}

func TestCrisisResumeThreshold(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 6.0, cfg.CrisisResumeThreshold())
	cfg.Crisis.ResumeThreshold = 4
	assert.Equal(t, 4.0, cfg.CrisisResumeThreshold())
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tribune.yaml")

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		yaml := "goal_mode: FAME\nserver:\n  port: 9000\n"
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, GoalFame, cfg.GoalMode)
		assert.Equal(t, 9000, cfg.Server.Port)
		// untouched defaults survive
		assert.Equal(t, 12.0, cfg.Crisis.SignalThreshold)
	})

	t.Run("save round trip", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.GoalMode = GoalAuthority
		out := filepath.Join(dir, "nested", "saved.yaml")
		require.NoError(t, cfg.Save(out))

		loaded, err := Load(out)
		require.NoError(t, err)
		assert.Equal(t, GoalAuthority, loaded.GoalMode)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("goal_mode: [unterminated"), 0644))
		_, err := Load(bad)
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRIBUNE_LIVE", "true")
	t.Setenv("TRIBUNE_GOAL_MODE", "revenue")
	t.Setenv("TRIBUNE_PORT", "9001")
	t.Setenv("X_BEARER_TOKEN", "xtok")
	t.Setenv("TRIBUNE_LLM_API_KEY", "llmkey")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.True(t, cfg.Live)
	assert.Equal(t, GoalRevenue, cfg.GoalMode)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "xtok", cfg.Platforms.X.Token)
	assert.Equal(t, "llmkey", cfg.LLM.APIKey)
}
