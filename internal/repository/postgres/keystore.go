package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/phantomlaunch/identity-server/internal/model"
)

var _ model.KeyStore = (*KeyRepository)(nil)

// KeyRepository persists encrypted wallet key material in postgres.
type KeyRepository struct {
	db *Connection
}

func NewKeyRepository(db *Connection) *KeyRepository {
	return &KeyRepository{
		db: db,
	}
}

func (r *KeyRepository) Save(ctx context.Context, material model.WalletKeyMaterial) error {
	query := `INSERT INTO wallet_keys (address, ciphertext, nonce, auth_tag)
			  VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, material.Address, material.Ciphertext, material.Nonce, material.AuthTag)
	if err != nil {
		return fmt.Errorf("failed to save key material: %w", err)
	}

	return nil
}

func (r *KeyRepository) Get(ctx context.Context, address string) (model.WalletKeyMaterial, error) {
	query := `SELECT address, ciphertext, nonce, auth_tag FROM wallet_keys WHERE address = $1`

	var material model.WalletKeyMaterial
	err := r.db.QueryRow(ctx, query, address).Scan(
		&material.Address, &material.Ciphertext, &material.Nonce, &material.AuthTag,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.WalletKeyMaterial{}, model.ErrNotFound
		}
		return model.WalletKeyMaterial{}, fmt.Errorf("failed to get key material: %w", err)
	}

	return material, nil
}
