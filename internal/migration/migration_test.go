package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitialSchemaCarriesIdempotencyIndexes(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/0001_init.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Contains(t, schema, "ux_event_registrations_source_txn ON event_registrations (source_transaction_id)")
	assert.Contains(t, schema, "WHERE status <> 'CANCELLED'")
	assert.Contains(t, schema, "ux_qr_credentials_registration ON qr_credentials (registration_id)")
	assert.Contains(t, schema, "ux_check_in_records_registration ON check_in_records (registration_id)")
	assert.Contains(t, schema, "ux_payment_transactions_gateway_order ON payment_transactions (gateway_order_id)")
}
