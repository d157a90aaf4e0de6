package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var MarkEmailVerifiedSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_verified" = TRUE,
	"verification_token" = NULL,
	"verification_expires" = NULL
WHERE
	"acc"."id" = ?;`

var AttachGoogleIDSQL = `UPDATE "accounts" AS "acc"
SET
	"google_id" = ?,
	"is_email_verified" = TRUE,
	"profile_image_url" = CASE
		WHEN "profile_image_url" IS NULL OR "profile_image_url" = '' THEN ?
		ELSE "profile_image_url"
	END
WHERE
	"acc"."id" = ?
AND (
	"acc"."google_id" IS NULL OR "acc"."google_id" = ?
);`

type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByAlias(ctx context.Context, alias string) (*Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	AliasExists(ctx context.Context, alias string) (bool, error)

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	StoreRefreshTokenHash(ctx context.Context, id string, hash string) error
	ClearRefreshTokenHash(ctx context.Context, id string) error
	StoreVerificationToken(ctx context.Context, id string, token string, expires time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	AttachGoogleID(ctx context.Context, id string, googleID string, profileImageURL string) error
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	UpdateProfile(ctx context.Context, id string, displayName string) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
	_ AccountStore                    = (*accounts)(nil)
	_ VerificationStore               = (*accounts)(nil)
	_ AliasChecker                    = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (a *accounts) GetByAlias(ctx context.Context, alias string) (*Account, error) {
	return a.getByColumnTx(ctx, a.db, "box_alias", strings.TrimSpace(alias))
}

func (a *accounts) GetByGoogleID(ctx context.Context, googleID string) (*Account, error) {
	return a.getByColumnTx(ctx, a.db, "google_id", googleID)
}

func (a *accounts) GetByVerificationToken(ctx context.Context, token string) (*Account, error) {
	return a.getByColumnTx(ctx, a.db, "verification_token", token)
}

func (a *accounts) FindByID(ctx context.Context, id string) (*Account, error) {
	return a.getByColumnTx(ctx, a.db, "id", id)
}

func (a *accounts) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"column": column,
			})
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"column": column,
					"value":  value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) AliasExists(ctx context.Context, alias string) (bool, error) {
	count, err := a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.box_alias = ?", alias).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	record, err := a.CreateTx(ctx, tx, account)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) StoreRefreshTokenHash(ctx context.Context, id string, hash string) error {
	return a.setColumn(ctx, id, "refresh_token_hash", hash)
}

func (a *accounts) ClearRefreshTokenHash(ctx context.Context, id string) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("refresh_token_hash = NULL").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) StoreVerificationToken(ctx context.Context, id string, token string, expires time.Time) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("verification_token = ?", token).
		Set("verification_expires = ?", expires).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *accounts) MarkEmailVerified(ctx context.Context, id string) error {
	_, err := a.db.NewRaw(MarkEmailVerifiedSQL, id).Exec(ctx)
	return err
}

func (a *accounts) AttachGoogleID(ctx context.Context, id string, googleID string, profileImageURL string) error {
	res, err := a.db.NewRaw(AttachGoogleIDSQL, googleID, profileImageURL, id, googleID).Exec(ctx)
	if err != nil {
		return mapUniqueViolation(err)
	}

	if res != nil {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrExternalIDConflict
		}
	}

	return nil
}

func (a *accounts) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	return a.setColumn(ctx, id, "password_hash", hash)
}

func (a *accounts) UpdateProfile(ctx context.Context, id string, displayName string) error {
	return a.setColumn(ctx, id, "display_name", displayName)
}

func (a *accounts) setColumn(ctx context.Context, id, column, value string) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set(fmt.Sprintf("%s = ?", column), value).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if record.Role == "" {
		record.Role = RoleArtist
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// mapUniqueViolation translates driver unique violations into the conflict
// errors callers surface. Covers sqlite and postgres message formats.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value violates unique") {
		return err
	}

	switch {
	case strings.Contains(msg, "box_alias"):
		return ErrAliasTaken
	case strings.Contains(msg, "google_id"):
		return ErrExternalIDConflict
	default:
		return ErrEmailTaken
	}
}
