package engine

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MatchID é o endereço de conteúdo de uma partida: keccak256 do par ordenado de times.
// (A,B) e (B,A) são partidas distintas.
type MatchID common.Hash

// NewMatchID é função pura: o mesmo par sempre gera o mesmo id.
// O tamanho de teamA entra como prefixo para que ("ab","c") e ("a","bc") não colidam.
func NewMatchID(teamA, teamB string) MatchID {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(teamA)))
	return MatchID(crypto.Keccak256Hash(l[:], []byte(teamA), []byte(teamB)))
}

// ParseMatchID aceita somente a forma canônica "0x" + 64 dígitos hexadecimais
func ParseMatchID(s string) (MatchID, error) {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return MatchID{}, fmt.Errorf("invalid match id %q", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return MatchID{}, fmt.Errorf("invalid match id %q: %w", s, err)
	}
	return MatchID(common.BytesToHash(b)), nil
}

func (id MatchID) Hex() string    { return common.Hash(id).Hex() }
func (id MatchID) String() string { return id.Hex() }
func (id MatchID) IsZero() bool   { return id == MatchID{} }

func (id MatchID) MarshalText() ([]byte, error) { return []byte(id.Hex()), nil }

func (id *MatchID) UnmarshalText(b []byte) error {
	v, err := ParseMatchID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
