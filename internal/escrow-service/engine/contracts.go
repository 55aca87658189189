package engine

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// Store é a persistência do escrow. Toda escrita acontece dentro de InTx;
// se fn devolver erro nada do que foi gravado no Tx é aplicado.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Match devolve ErrMatchNotFound quando a partida não existe
	Match(ctx context.Context, id MatchID) (Match, error)
	// Bet devolve um registro zerado quando o usuário não apostou
	Bet(ctx context.Context, user string, id MatchID) (Bet, error)
	// EscrowBalance soma Held() de todas as partidas
	EscrowBalance(ctx context.Context) (uint256.Int, error)
}

// Tx é a visão transacional. Match e Bet travam a linha lida até o fim da transação.
type Tx interface {
	Match(ctx context.Context, id MatchID) (Match, bool, error)
	InsertMatch(ctx context.Context, m Match) error // ErrMatchAlreadyExists em conflito
	UpdateMatch(ctx context.Context, m Match) error
	Bet(ctx context.Context, user string, id MatchID) (Bet, bool, error)
	PutBet(ctx context.Context, b Bet) error
}

// Rail move valor entre participantes e a custódia. Refs identificam a operação;
// uma implementação deve tratar Pay repetido com o mesmo ref como no-op.
type Rail interface {
	// Collect retira amount do participante para a custódia
	Collect(ctx context.Context, from string, amount uint256.Int, ref string) error
	// Release devolve ao participante um Collect cuja transação não confirmou
	Release(ctx context.Context, from string, amount uint256.Int, ref string) error
	// Pay credita amount ao participante a partir da custódia
	Pay(ctx context.Context, to string, amount uint256.Int, ref string) error
}

// Locker garante exclusão mútua por chave (uma partida por vez)
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Publisher entrega eventos do escrow (Kafka em produção)
type Publisher interface {
	Publish(ctx context.Context, e events.EscrowEvent) error
}

// FeeSource é satisfeita por *feepolicy.Policy
type FeeSource interface {
	FeePercent() uint8
	Admin() string
}

// Hooks são callbacks opcionais chamados após cada operação (métricas)
type Hooks struct {
	OnMatchCreated func()
	OnBetPlaced    func(team Team)
	OnSettled      func(stranded bool)
	OnWithdrawn    func()
	OnError        func(op, kind string)
}
