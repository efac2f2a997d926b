package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	id := uuid.MustParse("3f2d9a10-6b4e-4c1a-8e55-0123456789ab")

	assert.Equal(t, "dt_3f2d9a106b4e4c1a8e550123456789ab", DataTableName(id))
	assert.Equal(t, "data_tables.dt_3f2d9a106b4e4c1a8e550123456789ab", DataTableRef(id))
	assert.Equal(t, "lt_3f2d9a106b4e4c1a8e550123456789ab", LookupTableName(id))
	assert.Equal(t, "lookup_tables.lt_3f2d9a106b4e4c1a8e550123456789ab", LookupTableRef(id))
	assert.Equal(t, "build_3f2d9a106b4e4c1a8e550123456789ab", ScratchSchemaName(id))
	assert.Equal(t, "cube_3f2d9a106b4e4c1a8e550123456789ab", CubeSchemaName(id))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteIdent("plain"))
	assert.Equal(t, `"odd""name"`, QuoteIdent(`odd"name`))
	assert.Equal(t, "'it''s'", QuoteLiteral("it's"))
}
