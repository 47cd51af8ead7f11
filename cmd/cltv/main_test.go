package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cerrors "github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func execute(t *testing.T, env func(string) (string, bool), args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr, env)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func fixture(t *testing.T) string {
	t.Helper()
	var txs []testutil.Transaction
	for c := range 24 {
		id := fmt.Sprintf("%d", 14000+c)
		for m := range 1 + c%3 {
			txs = append(txs, testutil.Transaction{
				CustomerID: id,
				Country:    "United Kingdom",
				Date:       time.Date(2011, time.Month(7+(c+m*5)%6), 1+c, 10, 0, 0, 0, time.UTC),
				Quantity:   int64(1 + (c*7+m*3)%11),
				UnitPrice:  1.25 + float64((c*13+m)%9),
			})
		}
	}
	return testutil.WriteTransactionsCSV(t, t.TempDir(), "retail.csv", txs)
}

func TestRootCmd_PrintsScore(t *testing.T) {
	input := fixture(t)

	stdout, stderr, err := execute(t, noEnv, "--input", input, "--chart", "", "--log-format", "json")
	require.NoError(t, err, stderr)

	assert.True(t, strings.HasPrefix(stdout, "Prediction score is: "), stdout)
	assert.Equal(t, 1, strings.Count(stdout, "\n"), "stdout holds only the score")
	assert.Contains(t, stderr, `"msg":"pipeline finished"`)
}

func TestRootCmd_ChartText(t *testing.T) {
	input := fixture(t)

	_, stderr, err := execute(t, noEnv, "--input", input, "--chart", "", "--chart-text", "--top-customers", "2")
	require.NoError(t, err)
	assert.Contains(t, stderr, "United Kingdom |")
	assert.Contains(t, stderr, "CustomerID")
}

func TestRootCmd_Errors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		_, stderr, err := execute(t, noEnv, "--input", filepath.Join(t.TempDir(), "nope.xlsx"), "--chart", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, cerrors.ErrFile)
		assert.Contains(t, stderr, "pipeline failed")
	})

	t.Run("invalid flag value", func(t *testing.T) {
		_, _, err := execute(t, noEnv, "--margin", "0")
		assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
	})

	t.Run("invalid environment", func(t *testing.T) {
		env := func(key string) (string, bool) {
			if key == "CLTV_RANDOM_SEED" {
				return "-1", true
			}
			return "", false
		}
		_, stderr, err := execute(t, env)
		assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
		assert.Contains(t, stderr, "CLTV_RANDOM_SEED")
	})
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cltv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("country: France\ntest_size: 0.2\nrandom_seed: 1\n"), 0o600))

	env := func(key string) (string, bool) {
		if key == "CLTV_TEST_SIZE" {
			return "0.3", true
		}
		return "", false
	}

	var args flags
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{}, env)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--seed", "9", "--months", "Dec-2011,Nov-2011"}))
	args.configPath, _ = cmd.Flags().GetString("config")
	args.seed, _ = cmd.Flags().GetUint64("seed")
	args.months, _ = cmd.Flags().GetString("months")

	cfg, err := loadConfig(cmd, &args, env)
	require.NoError(t, err)

	assert.Equal(t, "France", cfg.Country, "file overrides defaults")
	assert.InDelta(t, 0.3, cfg.TestSize, 1e-12, "environment overrides the file")
	assert.Equal(t, uint64(9), cfg.RandomSeed, "flags override everything")
	assert.Equal(t, []string{"Dec-2011", "Nov-2011"}, cfg.FeatureMonths)
	assert.Equal(t, 10, cfg.TopCountries)
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := execute(t, noEnv, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Version:")
}
