package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	user, err := CreateUser("maria", "maria@example.com", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "maria", user.Name)
	assert.Equal(t, ROLE_USER, user.Role)
	assert.Equal(t, STATUS_ACTIVE, user.Status)
	assert.NotEqual(t, "secret123", user.Password)
	assert.True(t, CheckPasswordHash("secret123", user.Password))
	assert.False(t, CheckPasswordHash("wrong", user.Password))
}

func TestCreateUserValidation(t *testing.T) {
	_, err := CreateUser("maria", "not-an-email", "secret123")
	assert.Error(t, err)

	_, err = CreateUser("ab", "maria@example.com", "secret123")
	assert.Error(t, err)
}
