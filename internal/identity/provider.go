package identity

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/apperrors"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
)

// Provider 身份提供方
// 引擎信任其返回的参与者信息，不做二次鉴权
type Provider interface {
	Principal(ctx context.Context, principalID int64) (model.Principal, error)
}

// StaticProvider 内存身份提供方
// 用于测试与模拟器的固定参与者
type StaticProvider struct {
	mu         sync.RWMutex
	principals map[int64]model.Principal
}

// NewStaticProvider 创建内存身份提供方
func NewStaticProvider(principals ...model.Principal) *StaticProvider {
	p := &StaticProvider{
		principals: make(map[int64]model.Principal, len(principals)),
	}
	for _, principal := range principals {
		p.principals[principal.ID] = principal
	}
	return p
}

// Add 注册参与者
func (p *StaticProvider) Add(principal model.Principal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.principals[principal.ID] = principal
}

// Principal 查找参与者
func (p *StaticProvider) Principal(ctx context.Context, principalID int64) (model.Principal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	principal, ok := p.principals[principalID]
	if !ok {
		return model.Principal{}, apperrors.ErrUserNotFound
	}
	return principal, nil
}

// PgProvider 数据库身份提供方
// 从平台用户表读取参与者信息
type PgProvider struct {
	db *pgxpool.Pool
}

// NewPgProvider 创建数据库身份提供方
func NewPgProvider(db *pgxpool.Pool) *PgProvider {
	return &PgProvider{db: db}
}

// Principal 查找参与者
func (p *PgProvider) Principal(ctx context.Context, principalID int64) (model.Principal, error) {
	query := `SELECT id, nickname, avatar, role FROM users WHERE id = $1`

	var principal model.Principal
	err := p.db.QueryRow(ctx, query, principalID).Scan(
		&principal.ID,
		&principal.DisplayName,
		&principal.Avatar,
		&principal.Role,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Principal{}, apperrors.ErrUserNotFound
		}
		return model.Principal{}, apperrors.ErrDBError.Wrap(err)
	}

	return principal, nil
}
