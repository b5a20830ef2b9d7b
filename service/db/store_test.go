package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildParams(op, payer, mint string) CreateBuildParams {
	return CreateBuildParams{
		Operation:            op,
		Network:              "devnet",
		Payer:                payer,
		Mint:                 mint,
		Blockhash:            "9zrUHnA1nCByPksy3aL8tQ47vqdaG2vnFs4HrxgcZj4F",
		LastValidBlockHeight: 123456,
		InstructionCount:     2,
		CreatedAccounts:      []string{"7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"},
		Encoding:             "base64",
	}
}

func TestCreateAndGetBuild(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	params := buildParams("mint_token", "payer1", "mint1")

	created, err := store.CreateBuild(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "mint_token", created.Operation)
	assert.Equal(t, "devnet", created.Network)
	assert.Equal(t, "payer1", created.Payer)
	assert.Equal(t, "mint1", created.Mint)
	assert.Equal(t, params.Blockhash, created.Blockhash)
	assert.Equal(t, int64(123456), created.LastValidBlockHeight)
	assert.Equal(t, int32(2), created.InstructionCount)
	assert.Equal(t, params.CreatedAccounts, created.CreatedAccounts)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, 5*time.Second)

	got, err := store.GetBuild(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.CreatedAccounts, got.CreatedAccounts)
}

func TestCreateBuild_NoCreatedAccounts(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	params := buildParams("transfer_token", "payer1", "mint1")
	params.CreatedAccounts = nil

	created, err := store.CreateBuild(context.Background(), params)
	require.NoError(t, err)
	assert.Empty(t, created.CreatedAccounts)
}

func TestGetBuild_NotFound(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	_, err := store.GetBuild(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrBuildNotFound)
}

func TestListAndCountBuilds(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	for _, p := range []CreateBuildParams{
		buildParams("create_token", "alice", "mintA"),
		buildParams("mint_token", "alice", "mintA"),
		buildParams("transfer_token", "alice", "mintB"),
		buildParams("burn_token", "bob", "mintA"),
	} {
		_, err := store.CreateBuild(ctx, p)
		require.NoError(t, err)
	}

	t.Run("filter by payer, newest first", func(t *testing.T) {
		builds, err := store.ListBuilds(ctx, ListBuildsParams{Payer: "alice", Limit: 10})
		require.NoError(t, err)
		require.Len(t, builds, 3)
		assert.Equal(t, "transfer_token", builds[0].Operation)
		assert.Equal(t, "create_token", builds[2].Operation)
	})

	t.Run("pagination", func(t *testing.T) {
		builds, err := store.ListBuilds(ctx, ListBuildsParams{Payer: "alice", Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, builds, 1)
		assert.Equal(t, "create_token", builds[0].Operation)
	})

	t.Run("combined filters", func(t *testing.T) {
		builds, err := store.ListBuilds(ctx, ListBuildsParams{Mint: "mintA", Operation: "burn_token"})
		require.NoError(t, err)
		require.Len(t, builds, 1)
		assert.Equal(t, "bob", builds[0].Payer)
	})

	t.Run("count", func(t *testing.T) {
		n, err := store.CountBuilds(ctx, ListBuildsParams{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		n, err = store.CountBuilds(ctx, ListBuildsParams{Mint: "mintA"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestDeleteBuildsOlderThan(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	old, err := store.CreateBuild(ctx, buildParams("mint_token", "alice", "mintA"))
	require.NoError(t, err)
	_, err = store.CreateBuild(ctx, buildParams("mint_token", "alice", "mintA"))
	require.NoError(t, err)

	store.MustExec(t, "UPDATE token_builds SET created_at = NOW() - INTERVAL '2 days' WHERE id = $1", old.ID)

	deleted, err := store.DeleteBuildsOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := store.CountBuilds(ctx, ListBuildsParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListBuildsParams_Filter(t *testing.T) {
	where, args := ListBuildsParams{}.filter()
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = ListBuildsParams{Payer: "p", Mint: "m"}.filter()
	assert.Equal(t, " WHERE payer = $1 AND mint = $2", where)
	assert.Equal(t, []any{"p", "m"}, args)
}
