package database

import (
	"testing"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNewSQLiteDB_EmptyPath(t *testing.T) {
	db, err := NewSQLiteDB(&config.DatabaseConfig{Driver: config.DriverSQLite})
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestGetDSN(t *testing.T) {
	pg := &config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     "db",
		Port:     5432,
		User:     "u",
		Password: "p",
		Database: "tags",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tags sslmode=disable", pg.GetDSN())

	lite := &config.DatabaseConfig{Driver: config.DriverSQLite, Path: "location_data.db"}
	assert.Equal(t, "location_data.db", lite.GetDSN())
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
