package all

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

func TestEveryDatabaseTypeIsRegistered(t *testing.T) {
	require.NoError(t, datasource.EnsureRegistered(models.DatabaseTypes()...))

	factory := datasource.NewDialectFactory(zaptest.NewLogger(t))
	assert.Len(t, factory.ListTypes(), len(models.DatabaseTypes()))

	for _, dbType := range models.DatabaseTypes() {
		t.Run(dbType.String(), func(t *testing.T) {
			d, err := factory.Dialect(dbType)
			require.NoError(t, err)
			assert.NotNil(t, d.SQLBuilder)
			assert.NotNil(t, d.SchemaLoader)
			assert.NotNil(t, d.TypeInfoReader)
			assert.NotNil(t, d.ReplicationProbe)
		})
	}
}

func TestCRC32OnlyOnMySQL(t *testing.T) {
	factory := datasource.NewDialectFactory(nil)
	for _, dbType := range models.DatabaseTypes() {
		d, err := factory.Dialect(dbType)
		require.NoError(t, err)
		_, err = d.SQLBuilder.BuildCRC32SQL("t_order", "status")
		if dbType == models.DatabaseTypeMySQL {
			assert.NoError(t, err, dbType.String())
		} else {
			assert.Error(t, err, dbType.String())
		}
	}
}
