package infrastructure

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"inventory/internal/service/inventory/domain"
)

func TestCheckUpdated(t *testing.T) {
	assert.NoError(t, checkUpdated(&gorm.DB{RowsAffected: 1}))
	assert.ErrorIs(t, checkUpdated(&gorm.DB{RowsAffected: 0}), domain.ErrRowNotUpdated)

	boom := errors.New("connection reset")
	assert.ErrorIs(t, checkUpdated(&gorm.DB{Error: boom}), boom)
	assert.ErrorIs(t, checkUpdated(&gorm.DB{Error: gorm.ErrDuplicatedKey}), domain.ErrDuplicateCode)
}

func TestMySQLOptions_DSN(t *testing.T) {
	dsn := MySQLOptions{Addr: "db:3306", User: "root", Password: "p@ss", Database: "inventory"}.DSN()

	cfg, err := mysql.ParseDSN(dsn)
	assert.NoError(t, err)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.True(t, cfg.ClientFoundRows, "updates must report matched rows")
	assert.True(t, cfg.ParseTime)
}
