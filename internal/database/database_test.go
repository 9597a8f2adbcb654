package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/thanh913/MOOJ/internal/models"
)

func TestConnectRedis(t *testing.T) {
	client, err := ConnectRedis(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())

	_, err = ConnectRedis(context.Background(), "not a url")
	require.Error(t, err)
}

func TestConnectSQLiteAndMigrate(t *testing.T) {
	db, err := Connect("sqlite:file:database_test?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.True(t, db.Migrator().HasTable(&models.Submission{}))
	require.True(t, db.Migrator().HasTable(&models.Problem{}))

	_, err = Connect("")
	require.Error(t, err)
}
