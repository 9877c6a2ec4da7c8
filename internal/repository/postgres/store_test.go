package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIdentityRepository(t *testing.T) {
	db := &Connection{}
	repo := NewIdentityRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestNewKeyRepository(t *testing.T) {
	db := &Connection{}
	repo := NewKeyRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}
