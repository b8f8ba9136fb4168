package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openCredentialsDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:dbx_"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE credentials (user_id TEXT PRIMARY KEY, username TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func usernames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT username FROM credentials ORDER BY user_id`)
	require.NoError(t, err)
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var u string
		require.NoError(t, rows.Scan(&u))
		out = append(out, u)
	}
	require.NoError(t, rows.Err())
	return out
}

func insert(ctx context.Context, tx DBTX, id, name string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO credentials (user_id, username) VALUES (?, ?)`, id, name)
	return err
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	cases := map[string]struct {
		fn      func(ctx context.Context, tx DBTX) error
		wantErr error
		want    []string
	}{
		"all statements committed": {
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insert(ctx, tx, "1", "ann"); err != nil {
					return err
				}
				return insert(ctx, tx, "2", "ben")
			},
			want: []string{"ann", "ben"},
		},
		"error rolls back earlier writes": {
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insert(ctx, tx, "1", "ann"); err != nil {
					return err
				}
				return boom
			},
			wantErr: boom,
			want:    []string{},
		},
		"constraint violation rolls back": {
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insert(ctx, tx, "1", "ann"); err != nil {
					return err
				}
				return insert(ctx, tx, "1", "again")
			},
			want: []string{},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := openCredentialsDB(t)

			err := WithTx(context.Background(), db, nil, tc.fn)

			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case len(tc.want) == 0:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, usernames(t, db))
		})
	}
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openCredentialsDB(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insert(ctx, tx, "1", "ann"))
			panic("kaput")
		})
	})
	assert.Empty(t, usernames(t, db))
}

func TestWithTx_ClosedDB(t *testing.T) {
	db := openCredentialsDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestDialect_Rebind(t *testing.T) {
	q := `UPDATE credentials SET username = ?, password_hash = ? WHERE user_id = ?`

	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t,
		`UPDATE credentials SET username = $1, password_hash = $2 WHERE user_id = $3`,
		Postgres.Rebind(q))
	assert.Equal(t, `SELECT 1`, Postgres.Rebind(`SELECT 1`))
}
