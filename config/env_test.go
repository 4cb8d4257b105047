package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// --- 环境变量绑定测试 ---

func TestLoader_EnvKeys(t *testing.T) {
	keys := NewLoader().EnvKeys()

	assert.Contains(t, keys, "AGENTWEAVER_MESSAGING_NATS_URL")
	assert.Contains(t, keys, "AGENTWEAVER_WORKFLOW_ROLES_TEXT_ANALYZER")
	assert.Contains(t, keys, "AGENTWEAVER_SCHEDULER_TASK_TIMEOUT")
	for _, k := range keys {
		assert.NotContains(t, k, "PROCESSORS")
	}
}

func TestLoader_WithEnvLookup(t *testing.T) {
	t.Setenv("AGENTWEAVER_SERVER_METRICS_PORT", "1111")

	cfg, err := NewLoader().
		WithEnvLookup(mapLookup(map[string]string{
			"AGENTWEAVER_WORKFLOW_STEP_TIMEOUT": "3s",
			"AGENTWEAVER_LOG_OUTPUT_PATHS":      "stdout,, stderr ",
		})).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Workflow.StepTimeout)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
	assert.Equal(t, DefaultConfig().Server.MetricsPort, cfg.Server.MetricsPort)
}

func TestLoader_ReportsEveryBadEnvValue(t *testing.T) {
	_, err := NewLoader().
		WithEnvLookup(mapLookup(map[string]string{
			"AGENTWEAVER_SCHEDULER_TASK_TIMEOUT": "soon",
			"AGENTWEAVER_SERVER_METRICS_PORT":    "eighty",
		})).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTWEAVER_SCHEDULER_TASK_TIMEOUT")
	assert.Contains(t, err.Error(), "AGENTWEAVER_SERVER_METRICS_PORT")
}

func TestParseInto(t *testing.T) {
	var target struct {
		U    uint16
		F    float32
		Ints []int
		M    map[string]string
	}
	v := reflect.ValueOf(&target).Elem()

	require.NoError(t, parseInto(v.Field(0), "8080"))
	assert.Equal(t, uint16(8080), target.U)
	assert.Error(t, parseInto(v.Field(0), "70000"))

	require.NoError(t, parseInto(v.Field(1), "0.25"))
	assert.InDelta(t, 0.25, target.F, 1e-6)

	assert.Error(t, parseInto(v.Field(2), "1,2"))
	assert.Error(t, parseInto(v.Field(3), "a=b"))
}
