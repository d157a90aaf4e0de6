package identity_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	identity "github.com/boxworks/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.NewCreateTable().
		Model((*identity.Account)(nil)).
		Exec(context.Background())
	require.NoError(t, err)

	return db
}

func seedAccount(t *testing.T, accounts identity.Accounts, mutate func(*identity.Account)) *identity.Account {
	t.Helper()

	account := &identity.Account{
		Email:    uuid.New().String() + "@example.com",
		BoxAlias: "BOX-" + uuid.New().String()[:6],
		Role:     identity.RoleArtist,
	}
	if mutate != nil {
		mutate(account)
	}

	created, err := accounts.Register(context.Background(), account)
	require.NoError(t, err)
	return created
}

func TestAccountsRegisterDefaults(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	created, err := accounts.Register(ctx, &identity.Account{
		Email:    "  Mixed.Case@Example.COM ",
		BoxAlias: "BOX-AAAAAA",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "mixed.case@example.com", created.Email)
	assert.Equal(t, identity.RoleArtist, created.Role)

	found, err := accounts.GetByEmail(ctx, "mixed.case@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestAccountsUniqueEmail(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	seedAccount(t, accounts, func(a *identity.Account) {
		a.Email = "taken@example.com"
	})

	_, err := accounts.Register(ctx, &identity.Account{
		Email:    "taken@example.com",
		BoxAlias: "BOX-OTHER1",
	})
	assert.Equal(t, identity.ErrEmailTaken, err)
}

func TestAccountsUniqueAlias(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	seedAccount(t, accounts, func(a *identity.Account) {
		a.BoxAlias = "BOX-SAME22"
	})

	_, err := accounts.Register(ctx, &identity.Account{
		Email:    "other@example.com",
		BoxAlias: "BOX-SAME22",
	})
	assert.Equal(t, identity.ErrAliasTaken, err)
}

func TestAccountsAliasExists(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	seedAccount(t, accounts, func(a *identity.Account) {
		a.BoxAlias = "BOX-KNOWN2"
	})

	exists, err := accounts.AliasExists(ctx, "BOX-KNOWN2")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = accounts.AliasExists(ctx, "BOX-NOPE22")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAccountsLookupsNotFound(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	_, err := accounts.GetByEmail(ctx, "missing@example.com")
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = accounts.GetByAlias(ctx, "BOX-MISSIN")
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = accounts.GetByGoogleID(ctx, "missing-sub")
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = accounts.GetByVerificationToken(ctx, "")
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = accounts.FindByID(ctx, uuid.New().String())
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestAccountsVerificationLifecycle(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	expires := time.Now().Add(24 * time.Hour)
	account := seedAccount(t, accounts, func(a *identity.Account) {
		a.VerificationToken = "pending-token"
		a.VerificationExpires = &expires
	})

	found, err := accounts.GetByVerificationToken(ctx, "pending-token")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	require.NoError(t, accounts.MarkEmailVerified(ctx, account.ID.String()))

	reloaded, err := accounts.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.True(t, reloaded.EmailVerified)
	assert.Empty(t, reloaded.VerificationToken)
	assert.Nil(t, reloaded.VerificationExpires)

	_, err = accounts.GetByVerificationToken(ctx, "pending-token")
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestAccountsStoreVerificationToken(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	account := seedAccount(t, accounts, nil)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, accounts.StoreVerificationToken(ctx, account.ID.String(), "fresh-token", expires))

	reloaded, err := accounts.GetByVerificationToken(ctx, "fresh-token")
	require.NoError(t, err)
	assert.Equal(t, account.ID, reloaded.ID)
	require.NotNil(t, reloaded.VerificationExpires)
}

func TestAccountsRefreshSlot(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	account := seedAccount(t, accounts, nil)

	require.NoError(t, accounts.StoreRefreshTokenHash(ctx, account.ID.String(), "hash-one"))

	reloaded, err := accounts.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "hash-one", reloaded.RefreshTokenHash)

	// rotation overwrites the single slot
	require.NoError(t, accounts.StoreRefreshTokenHash(ctx, account.ID.String(), "hash-two"))
	reloaded, err = accounts.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "hash-two", reloaded.RefreshTokenHash)

	require.NoError(t, accounts.ClearRefreshTokenHash(ctx, account.ID.String()))
	reloaded, err = accounts.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Empty(t, reloaded.RefreshTokenHash)
}

func TestAccountsAttachGoogleID(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	account := seedAccount(t, accounts, nil)

	require.NoError(t, accounts.AttachGoogleID(ctx, account.ID.String(), "google-sub-1", "https://img.example.com/a.png"))

	reloaded, err := accounts.GetByGoogleID(ctx, "google-sub-1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, reloaded.ID)
	assert.True(t, reloaded.EmailVerified, "provider login vouches for the address")
	assert.Equal(t, "https://img.example.com/a.png", reloaded.ProfileImageURL)

	// re-attaching the same identity is a no-op
	require.NoError(t, accounts.AttachGoogleID(ctx, account.ID.String(), "google-sub-1", ""))

	// a different identity cannot take over the slot
	err = accounts.AttachGoogleID(ctx, account.ID.String(), "google-sub-2", "")
	assert.Equal(t, identity.ErrExternalIDConflict, err)
}

func TestAccountsAttachGoogleIDKeepsExistingImage(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	account := seedAccount(t, accounts, func(a *identity.Account) {
		a.ProfileImageURL = "https://img.example.com/original.png"
	})

	require.NoError(t, accounts.AttachGoogleID(ctx, account.ID.String(), "google-sub-3", "https://img.example.com/provider.png"))

	reloaded, err := accounts.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/original.png", reloaded.ProfileImageURL)
}

func TestAccountsProfileUpdates(t *testing.T) {
	ctx := context.Background()
	accounts := identity.NewAccountsRepository(setupTestDB(t))

	account := seedAccount(t, accounts, nil)

	require.NoError(t, accounts.UpdateProfile(ctx, account.ID.String(), "Stage Name"))
	require.NoError(t, accounts.UpdatePasswordHash(ctx, account.ID.String(), "new-hash"))

	reloaded, err := accounts.FindByID(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Stage Name", reloaded.DisplayName)
	assert.Equal(t, "new-hash", reloaded.PasswordHash)
}

func TestRepositoryManager(t *testing.T) {
	db := setupTestDB(t)
	manager := identity.NewRepositoryManager(db)

	require.NoError(t, manager.Validate())
	require.NotNil(t, manager.Accounts())

	ctx := context.Background()
	err := manager.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := manager.Accounts().RegisterTx(ctx, tx, &identity.Account{
			Email:    "tx@example.com",
			BoxAlias: "BOX-TXTEST",
		})
		return err
	})
	require.NoError(t, err)

	found, err := manager.Accounts().GetByEmail(ctx, "tx@example.com")
	require.NoError(t, err)
	assert.Equal(t, "tx@example.com", found.Email)
}

func TestRepositoryManagerCancelledContext(t *testing.T) {
	manager := identity.NewRepositoryManager(setupTestDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := manager.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
