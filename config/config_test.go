package config

import (
	"testing"

	"github.com/gradebook/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "DumpData", cfg.DataDir)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.AllowsAnyOrigin())
	assert.Equal(t, types.DefaultPolicy(), cfg.Policy)
	assert.Equal(t, "gradebook.events", cfg.MQ.Channel)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("ADMIN_USERS", "Root, ops@x.com")
	t.Setenv("LOGIN_IDENTIFIER_MODE", "email")
	t.Setenv("DELETE_REQUIRES_AUTH", "false")
	t.Setenv("CLASS_ID_SCOPE", "owner")
	t.Setenv("UPSERT_OWNERSHIP", "reassign")
	t.Setenv("HIDE_FOREIGN_CLASSES", "true")
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "backups")

	cfg := LoadConfig()

	assert.Equal(t, 9100, cfg.ServerPort)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AllowsAnyOrigin())
	assert.Equal(t, []string{"root", "ops@x.com"}, cfg.AdminUsers)
	assert.Equal(t, types.Policy{
		LoginIdentifierMode: types.LoginEmailOnly,
		DeleteRequiresAuth:  false,
		ClassIDScope:        types.ClassIDScopeOwner,
		UpsertOwnership:     types.UpsertReassign,
		HideForeignClasses:  true,
	}, cfg.Policy)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "backups", cfg.Storage.S3.Bucket)
	require.NoError(t, cfg.Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Setenv("CLASS_ID_SCOPE", "galaxy")
	t.Setenv("MQ_BACKEND", "kafka")
	t.Setenv("PORT", "0")

	cfg := LoadConfig()
	assert.Equal(t, types.ClassIDScopeGlobal, cfg.Policy.ClassIDScope)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLASS_ID_SCOPE")
	assert.Contains(t, err.Error(), "MQ_BACKEND")
	assert.Contains(t, err.Error(), "PORT")
}
