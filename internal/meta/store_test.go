package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     5433,
		Database: "statcube",
		Username: "svc",
		Password: "secret",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 dbname=statcube sslmode=require user=svc password=secret",
		cfg.DSN())
}

func TestConfigDSNDefaults(t *testing.T) {
	cfg := Config{Database: "statcube"}
	assert.Equal(t, "host=localhost port=5432 dbname=statcube sslmode=disable", cfg.DSN())
}
