// Package feepolicy guarda o percentual de comissão do escrow e o administrador
// autorizado a alterá-lo.
package feepolicy

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultFeePercent é o percentual aplicado quando nada foi configurado
const DefaultFeePercent = 3

var (
	ErrNotAdmin             = errors.New("not admin")
	ErrFeePercentOutOfRange = errors.New("fee percent cannot exceed 100")
)

// Store persiste o registro único da política
type Store interface {
	LoadFeePolicy(ctx context.Context) (admin string, percent int, found bool, err error)
	SaveFeePolicy(ctx context.Context, admin string, percent int) error
}

// ChangeFunc é chamada após uma alteração bem-sucedida do percentual
type ChangeFunc func(ctx context.Context, admin string, oldPercent, newPercent uint8)

// Policy é segura para uso concorrente. O admin é fixo desde a construção.
type Policy struct {
	mu       sync.RWMutex
	admin    string
	percent  uint8
	store    Store
	onChange ChangeFunc
}

// New cria uma política em memória
func New(admin string, percent int) (*Policy, error) {
	if admin == "" {
		return nil, errors.New("feepolicy: admin required")
	}
	if err := validPercent(percent); err != nil {
		return nil, err
	}
	return &Policy{admin: admin, percent: uint8(percent)}, nil
}

// Restore carrega a política do store, criando o registro com (admin, percent) na primeira execução.
// Um registro existente prevalece: o admin gravado na primeira execução não muda.
func Restore(ctx context.Context, s Store, admin string, percent int) (*Policy, error) {
	storedAdmin, storedPercent, found, err := s.LoadFeePolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("feepolicy: load: %w", err)
	}
	if !found {
		p, err := New(admin, percent)
		if err != nil {
			return nil, err
		}
		if err := s.SaveFeePolicy(ctx, admin, percent); err != nil {
			return nil, fmt.Errorf("feepolicy: save: %w", err)
		}
		p.store = s
		return p, nil
	}

	p, err := New(storedAdmin, storedPercent)
	if err != nil {
		return nil, fmt.Errorf("feepolicy: stored record: %w", err)
	}
	p.store = s
	return p, nil
}

// OnChange registra o callback de alteração (eventos, métricas)
func (p *Policy) OnChange(fn ChangeFunc) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *Policy) Admin() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.admin
}

// FeePercent é leitura pura; nunca falha
func (p *Policy) FeePercent() uint8 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percent
}

// SetFeePercent altera o percentual; só o admin, e só dentro de [0,100].
// Se a persistência falhar o valor em memória não muda.
func (p *Policy) SetFeePercent(ctx context.Context, caller string, percent int) error {
	p.mu.Lock()
	if caller != p.admin {
		p.mu.Unlock()
		return ErrNotAdmin
	}
	if err := validPercent(percent); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.store != nil {
		if err := p.store.SaveFeePolicy(ctx, p.admin, percent); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("feepolicy: save: %w", err)
		}
	}
	old := p.percent
	p.percent = uint8(percent)
	fn, admin := p.onChange, p.admin
	p.mu.Unlock()

	if fn != nil {
		fn(ctx, admin, old, uint8(percent))
	}
	return nil
}

func validPercent(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: %d", ErrFeePercentOutOfRange, p)
	}
	return nil
}
