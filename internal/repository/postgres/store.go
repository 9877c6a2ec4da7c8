package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/phantomlaunch/identity-server/internal/model"
)

var _ model.IdentityStore = (*IdentityRepository)(nil)

const userColumns = `id, wallet_address, external_account_id, status, created_at, claimed_at, merged_into`
const identityColumns = `id, user_id, platform, platform_id, created_by, created_at`

// IdentityRepository is the durable identity store. The natural-key unique
// constraint on identities makes phantom creation a compare-and-insert;
// claim and merge mutations run inside transactions with row locks so no
// reader observes a half-migrated identity set.
type IdentityRepository struct {
	db *Connection
}

func NewIdentityRepository(db *Connection) *IdentityRepository {
	return &IdentityRepository{
		db: db,
	}
}

func (r *IdentityRepository) CreatePhantom(ctx context.Context, user model.User, identity model.Identity) (model.Identity, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Identity{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, wallet_address, status, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.WalletAddress, string(user.Status), user.CreatedAt,
	)
	if err != nil {
		return model.Identity{}, false, fmt.Errorf("failed to create user: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO identities (id, user_id, platform, platform_id, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (platform, platform_id) DO NOTHING`,
		identity.ID, identity.UserID, string(identity.Platform), identity.PlatformID,
		identity.CreatedBy, identity.CreatedAt,
	)
	if err != nil {
		return model.Identity{}, false, fmt.Errorf("failed to create identity: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Another writer won the natural key; drop our user row with the
		// rollback and hand back the winner's identity.
		if err := tx.Rollback(ctx); err != nil {
			return model.Identity{}, false, fmt.Errorf("failed to roll back losing create: %w", err)
		}
		existing, err := r.GetIdentity(ctx, identity.Platform, identity.PlatformID)
		if err != nil {
			return model.Identity{}, false, fmt.Errorf("failed to get winning identity: %w", err)
		}
		return existing, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Identity{}, false, fmt.Errorf("failed to commit phantom creation: %w", err)
	}

	return identity, true, nil
}

func (r *IdentityRepository) GetIdentity(ctx context.Context, platform model.Platform, platformID string) (model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE platform = $1 AND platform_id = $2`

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, string(platform), platformID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, model.ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to get identity by platform: %w", err)
	}

	return identity, nil
}

func (r *IdentityRepository) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

func (r *IdentityRepository) GetUserByExternalAccount(ctx context.Context, externalAccountID string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_account_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, externalAccountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by external account: %w", err)
	}

	return user, nil
}

func (r *IdentityRepository) GetUserByWallet(ctx context.Context, address string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by wallet: %w", err)
	}

	return user, nil
}

func (r *IdentityRepository) GetIdentitiesByUser(ctx context.Context, userID uuid.UUID) ([]model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get identities by user: %w", err)
	}
	defer rows.Close()

	var identities []model.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identities: %w", err)
	}

	return identities, nil
}

func (r *IdentityRepository) ListPhantomUsers(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
			  WHERE status = $1 AND merged_into IS NULL ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, string(model.UserStatusPhantom))
	if err != nil {
		return nil, fmt.Errorf("failed to list phantom users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

func (r *IdentityRepository) PromoteUser(ctx context.Context, userID uuid.UUID, externalAccountID string, claimedAt time.Time) (model.User, error) {
	query := `UPDATE users
			  SET status = $2, external_account_id = $3, claimed_at = COALESCE(claimed_at, $4)
			  WHERE id = $1
			  RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, userID, string(model.UserStatusClaimed), externalAccountID, claimedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to promote user: %w", err)
	}

	return user, nil
}

func (r *IdentityRepository) MergeUsers(ctx context.Context, primaryID, phantomID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.Query(ctx, `SELECT id FROM users WHERE id = ANY($1) FOR UPDATE`, []uuid.UUID{primaryID, phantomID})
	if err != nil {
		return fmt.Errorf("failed to lock users for merge: %w", err)
	}
	var locked int
	for rows.Next() {
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock users for merge: %w", err)
	}
	if locked != 2 {
		return fmt.Errorf("merge users %s and %s: %w", primaryID, phantomID, model.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `UPDATE identities SET user_id = $1 WHERE user_id = $2`, primaryID, phantomID); err != nil {
		return fmt.Errorf("failed to re-point identities: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET merged_into = $1, status = $2 WHERE id = $3`,
		primaryID, string(model.UserStatusClaimed), phantomID,
	); err != nil {
		return fmt.Errorf("failed to tombstone merged user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}

	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	var status string
	err := row.Scan(
		&user.ID, &user.WalletAddress, &user.ExternalAccountID, &status,
		&user.CreatedAt, &user.ClaimedAt, &user.MergedInto,
	)
	if err != nil {
		return model.User{}, err
	}
	user.Status = model.UserStatus(status)
	return user, nil
}

func scanIdentity(row pgx.Row) (model.Identity, error) {
	var identity model.Identity
	var platform string
	err := row.Scan(
		&identity.ID, &identity.UserID, &platform, &identity.PlatformID,
		&identity.CreatedBy, &identity.CreatedAt,
	)
	if err != nil {
		return model.Identity{}, err
	}
	identity.Platform = model.Platform(platform)
	return identity, nil
}
