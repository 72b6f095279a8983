package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Tiisu/SourceWiki-sub001/internal/store/core"
)

const userColumns = `
	id, username, email, password_hash, status,
	wiki_remote_id, wiki_username, wiki_access_token, wiki_access_secret,
	wiki_edit_count, wiki_groups, wiki_rights, wiki_synthetic,
	created_at, updated_at`

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	var remoteID, wikiUser, accessToken, accessSecret *string
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Status,
		&remoteID, &wikiUser, &accessToken, &accessSecret,
		&u.WikiEditCount, &u.WikiGroups, &u.WikiRights, &u.WikiSynthetic,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	if remoteID != nil {
		u.WikiRemoteID = *remoteID
	}
	if wikiUser != nil {
		u.WikiUsername = *wikiUser
	}
	if accessToken != nil {
		u.WikiAccessToken = *accessToken
	}
	if accessSecret != nil {
		u.WikiAccessSecret = *accessSecret
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) FindUserByWikiRemoteID(ctx context.Context, remoteID string) (*core.User, error) {
	if remoteID == "" {
		return nil, core.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wiki_remote_id = $1`, remoteID)
	return scanUser(row)
}

func (s *Store) FindUserByWikiAccessToken(ctx context.Context, accessToken string) (*core.User, error) {
	if accessToken == "" {
		return nil, core.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wiki_access_token = $1`, accessToken)
	return scanUser(row)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*core.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = "active"
	}
	const q = `
		INSERT INTO users (
			id, username, email, password_hash, status,
			wiki_remote_id, wiki_username, wiki_access_token, wiki_access_secret,
			wiki_edit_count, wiki_groups, wiki_rights, wiki_synthetic,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5, NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), $10,$11,$12,$13, NOW(), NOW())
		RETURNING created_at, updated_at`

	row := s.pool.QueryRow(ctx, q,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Status,
		u.WikiRemoteID, u.WikiUsername, u.WikiAccessToken, u.WikiAccessSecret,
		u.WikiEditCount, u.WikiGroups, u.WikiRights, u.WikiSynthetic,
	)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) UpdateWikiIdentity(ctx context.Context, userID string, ident core.WikiIdentity) error {
	const q = `
		UPDATE users SET
			wiki_remote_id = NULLIF($2,''),
			wiki_username = NULLIF($3,''),
			wiki_access_token = NULLIF($4,''),
			wiki_access_secret = NULLIF($5,''),
			wiki_edit_count = $6,
			wiki_groups = $7,
			wiki_rights = $8,
			wiki_synthetic = $9,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		userID,
		ident.RemoteID, ident.Username, ident.AccessToken, ident.AccessSecret,
		ident.EditCount, ident.Groups, ident.Rights, ident.Synthetic,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// mapPgError translates unique-constraint violations (23505) to
// core.ErrConflict; the wiki_remote_id constraint is what guarantees one
// local account per remote identity under concurrent callbacks.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return core.ErrConflict
	}
	return err
}
