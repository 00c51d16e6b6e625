package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"BEARER_TOKEN", "BASE_URL", "PORT", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_DRIVER", "DATABASE_DSN"} {
		t.Setenv(k, "")
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
  allowedOrigins: ["https://app.example.com"]
  rateLimit:
    capacity: 3
    refillRate: 2
log:
  level: debug
  format: console
crewai:
  baseURL: https://crew.example.com
  bearerToken: file-token
  pollInterval: 5s
  maxPolls: 100
  maxWait: 10m
  failureStates: [FAILED, ERROR]
database:
  driver: Postgres
  host: db
  user: relay
  password: pw
  name: insights
minio:
  enabled: true
  endpoint: minio:9000
  bucketName: runs
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3, cfg.Server.RateLimit.Capacity)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "https://crew.example.com", cfg.CrewAI.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.CrewAI.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.CrewAI.MaxWait)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "host=db port=5432 user=relay password=pw dbname=insights sslmode=disable", cfg.PostgresDSN())

	assert.Equal(t, 10*time.Minute+30*time.Second+time.Minute, cfg.Server.WriteTimeout)

	policy := cfg.PollPolicy()
	assert.Equal(t, 5*time.Second, policy.Interval)
	assert.Equal(t, 100, policy.MaxPolls)
	assert.Equal(t, []string{"SUCCESS"}, policy.SuccessStates)
	assert.Equal(t, []string{"FAILED", "ERROR"}, policy.FailureStates)
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "env-token")
	t.Setenv("BASE_URL", "https://crew.example.com")
	t.Setenv("PORT", "7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.CrewAI.BearerToken)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.CrewAI.PollInterval)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, 0, cfg.CrewAI.MaxPolls)
	assert.Equal(t, "", cfg.Database.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BEARER_TOKEN", "env-token")
	path := writeConfig(t, `
crewai:
  baseURL: https://crew.example.com
  bearerToken: file-token
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.CrewAI.BearerToken)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing base url",
			body:    "crewai:\n  bearerToken: t\n",
			wantErr: "base URL",
		},
		{
			name:    "missing token",
			body:    "crewai:\n  baseURL: http://x\n",
			wantErr: "bearer token",
		},
		{
			name:    "unknown driver",
			body:    "crewai:\n  baseURL: http://x\n  bearerToken: t\ndatabase:\n  driver: sqlite\n",
			wantErr: "unsupported database driver",
		},
		{
			name:    "minio without bucket",
			body:    "crewai:\n  baseURL: http://x\n  bearerToken: t\nminio:\n  enabled: true\n  endpoint: m:9000\n",
			wantErr: "bucketName",
		},
		{
			name:    "bad port",
			body:    "crewai:\n  baseURL: http://x\n  bearerToken: t\n",
			env:     map[string]string{"PORT": "eighty"},
			wantErr: "PORT",
		},
		{
			name:    "write timeout with unbounded polling",
			body:    "server:\n  writeTimeout: 15m\ncrewai:\n  baseURL: http://x\n  bearerToken: t\n",
			wantErr: "writeTimeout",
		},
		{
			name:    "write timeout shorter than max wait",
			body:    "server:\n  writeTimeout: 5m\ncrewai:\n  baseURL: http://x\n  bearerToken: t\n  maxWait: 10m\n",
			wantErr: "cut off polling",
		},
		{
			name:    "malformed yaml",
			body:    "crewai: [",
			wantErr: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_WriteTimeoutBelowMaxWait(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  writeTimeout: 20m
crewai:
  baseURL: https://crew.example.com
  bearerToken: t
  maxWait: 10m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cfg.Server.WriteTimeout)
}

func TestMySQLDSN(t *testing.T) {
	var cfg Config
	cfg.Database.User = "relay"
	cfg.Database.Password = "pw"
	cfg.Database.Host = "db"
	cfg.Database.Port = 3306
	cfg.Database.Name = "insights"
	assert.Equal(t, "relay:pw@tcp(db:3306)/insights?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())

	cfg.Database.DSN = "custom"
	assert.Equal(t, "custom", cfg.MySQLDSN())
}
