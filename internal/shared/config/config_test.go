package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	ctopics "github.com/radieske/sports-bet-escrow/pkg/contracts/topics"
)

func TestLoad_EscrowServiceDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "escrow-service")
	t.Setenv("ESCROW_ADMIN", "ops")

	cfg := Load()

	assert.Equal(t, "8084", cfg.HTTPPort)
	assert.Equal(t, "9100", cfg.MetricsPort)
	assert.Equal(t, "ops", cfg.EscrowAdmin)
	assert.Equal(t, "ops", cfg.FeeAdmin, "fee admin defaults to the escrow admin")
	assert.Equal(t, 3, cfg.FeePercentInitial)
	assert.Equal(t, int32(18), cfg.AmountDecimals)
	assert.Equal(t, ctopics.EscrowEvents, cfg.TopicEscrowEvents)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "wallet-service")
	t.Setenv("FEE_PERCENT_INITIAL", "7")
	t.Setenv("LOCK_TTL", "2s")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("AMOUNT_DECIMALS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "8082", cfg.HTTPPort)
	assert.Equal(t, 7, cfg.FeePercentInitial)
	assert.Equal(t, 2*time.Second, cfg.LockTTL)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, int32(18), cfg.AmountDecimals, "invalid values fall back to default")
}
