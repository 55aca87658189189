package engine

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Team identifica o lado da aposta; no fio A = 1 e B = 2
type Team uint8

const (
	TeamNone Team = 0
	TeamA    Team = 1
	TeamB    Team = 2
)

func (t Team) Valid() bool { return t == TeamA || t == TeamB }

func (t Team) String() string {
	switch t {
	case TeamA:
		return "A"
	case TeamB:
		return "B"
	default:
		return fmt.Sprintf("Team(%d)", uint8(t))
	}
}

// MatchState segue Created -> Open -> Settled; Settled é terminal.
// Settling é interno à liquidação: a comissão já foi calculada e congelada, o pagamento
// ao fee admin ainda não foi confirmado. Não aceita apostas nem saques.
type MatchState string

const (
	StateCreated  MatchState = "CREATED"
	StateOpen     MatchState = "OPEN"
	StateSettling MatchState = "SETTLING"
	StateSettled  MatchState = "SETTLED"
)

// Match guarda pools e resultado de uma partida. Valores em unidades base.
type Match struct {
	ID             MatchID
	TeamA          string
	TeamB          string
	State          MatchState
	WinningTeam    Team
	PoolA          uint256.Int
	PoolB          uint256.Int
	CommissionPaid uint256.Int // congelada em Settling, paga em Settled
	Distributable  uint256.Int
	PaidOut        uint256.Int // soma das parcelas já sacadas
}

// Pool devolve o pool do time informado (zero para TeamNone)
func (m Match) Pool(t Team) uint256.Int {
	switch t {
	case TeamA:
		return m.PoolA
	case TeamB:
		return m.PoolB
	default:
		return uint256.Int{}
	}
}

func (m *Match) addToPool(t Team, amount *uint256.Int) bool {
	p := &m.PoolA
	if t == TeamB {
		p = &m.PoolB
	}
	_, overflow := p.AddOverflow(p, amount)
	return overflow
}

// Total é poolA + poolB. Não estoura: PlaceBet rejeita apostas que estourariam o total.
func (m Match) Total() uint256.Int {
	var t uint256.Int
	t.Add(&m.PoolA, &m.PoolB)
	return t
}

// Held é o quanto desta partida ainda está em custódia:
// total - comissão paga - parcelas sacadas (inclui pools perdedores e poeira de arredondamento).
// Em Settling a comissão congelada ainda conta como retida.
func (m Match) Held() uint256.Int {
	h := m.Total()
	if m.State == StateSettled {
		h.Sub(&h, &m.CommissionPaid)
	}
	h.Sub(&h, &m.PaidOut)
	return h
}

// Stranded indica partida liquidada sem nenhum apostador vencedor:
// o distribuível fica em custódia sem ninguém para sacar
func (m Match) Stranded() bool {
	if m.State != StateSettled {
		return false
	}
	w := m.Pool(m.WinningTeam)
	return w.IsZero() && !m.Distributable.IsZero()
}

// Bet é única por (User, MatchID). Apostas repetidas acumulam no mesmo lado.
type Bet struct {
	User    string
	MatchID MatchID
	Amount  uint256.Int
	Team    Team
	Claimed bool
	Stakes  int // quantidade de PlaceBet acumulados
}
