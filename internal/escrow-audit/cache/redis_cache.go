package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// RedisCache mantém um snapshot de leitura de cada partida, montado a partir dos eventos
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration // 0 = sem expiração
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func key(matchID string) string { return "escrow:match:" + matchID }

// FeeKey guarda o último percentual de comissão publicado
const FeeKey = "escrow:fee_percent"

// Apply atualiza o snapshot com os campos que o evento carrega
func (r *RedisCache) Apply(ctx context.Context, e events.EscrowEvent) error {
	if e.Type == events.TypeFeePercentChanged {
		if e.FeePercent == nil {
			return nil
		}
		return r.Client.Set(ctx, FeeKey, *e.FeePercent, 0).Err()
	}
	if e.MatchID == "" {
		return nil
	}

	fields := map[string]any{"last_event": e.Type, "updated_at": e.TsUnixMs}
	switch e.Type {
	case events.TypeMatchCreated:
		fields["state"] = "CREATED"
		fields["team_a"] = e.TeamA
		fields["team_b"] = e.TeamB
	case events.TypeMatchOpened:
		fields["state"] = "OPEN"
	case events.TypeBetPlaced:
		fields["pool_a"] = e.PoolA
		fields["pool_b"] = e.PoolB
	case events.TypeMatchSettled:
		fields["state"] = "SETTLED"
		fields["winning_team"] = e.Team
		fields["pool_a"] = e.PoolA
		fields["pool_b"] = e.PoolB
		fields["commission"] = e.Commission
		fields["distributable"] = e.Distributable
	}

	k := key(e.MatchID)
	pipe := r.Client.TxPipeline()
	pipe.HSet(ctx, k, fields)
	if e.Type == events.TypeWinningsWithdrawn {
		pipe.HIncrBy(ctx, k, "withdrawals", 1)
	}
	if r.TTL > 0 {
		pipe.Expire(ctx, k, r.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot devolve os campos atuais da partida (vazio se não houver)
func (r *RedisCache) Snapshot(ctx context.Context, matchID string) (map[string]string, error) {
	return r.Client.HGetAll(ctx, key(matchID)).Result()
}
