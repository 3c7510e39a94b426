package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert airspace: %w", dup)))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1451}))
	assert.False(t, IsDuplicateKey(errors.New("1062")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&mysql.MySQLError{Number: 1451}))
	assert.True(t, IsForeignKeyViolation(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsForeignKeyViolation(&mysql.MySQLError{Number: 1062}))
}

func TestSchemaOrder(t *testing.T) {
	// parents must be created before the tables that reference them
	order := []string{"users", "refresh_tokens", "airspaces", "flight_applications",
		"airspace_usage", "missions", "videos", "analysis_results", "alert_events"}
	assert.Len(t, schema, len(order))
	for i, name := range order {
		assert.Contains(t, schema[i], "CREATE TABLE IF NOT EXISTS "+name+" (")
	}
}
