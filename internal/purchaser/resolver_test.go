package purchaser

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/models"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	_, err = bunDB.NewCreateTable().Model((*models.Purchaser)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return NewResolver(bunDB)
}

func TestResolveCreatesGuestOnFirstContact(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	p, err := r.Resolve(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.True(t, p.Guest)
}

func TestResolveReturnsExistingIdentity(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "alice@example.com")
	require.NoError(t, err)

	second, err := r.Resolve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := r.Resolve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestFindByEmailUnknownIsNil(t *testing.T) {
	r := newTestResolver(t)

	p, err := r.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestResolveSurvivesInsertRace(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	// Pre-insert the row the way a concurrent winner would, then resolve an
	// email whose insert must fail on the unique constraint.
	winner, err := r.CreateGuest(ctx, "race@example.com")
	require.NoError(t, err)

	_, err = r.CreateGuest(ctx, "race@example.com")
	require.Error(t, err, "unique email rejects a second guest")

	p, err := r.Resolve(ctx, "race@example.com")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, p.ID)
}
