package migrations_test

import (
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/katalog/assets/migrations"
)

func TestFS(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()

	versions := make([]uint, 0)
	v, err := src.First()
	require.NoError(t, err)

	for {
		versions = append(versions, v)

		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "version %d has no up file", v)
		b, err := io.ReadAll(up)
		require.NoError(t, err)
		_ = up.Close()
		assert.NotEmpty(t, b)

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d has no down file", v)
		_ = down.Close()

		v, err = src.Next(v)
		if err != nil {
			break
		}
	}

	// reports references apps, so it must come later
	assert.Equal(t, []uint{1595833918, 1700000001, 1700000002}, versions)
}
