package secrets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestEnvName(t *testing.T) {
	assert.Equal(t, "KEEP_MIGRATE_TOKEN_ME_EXAMPLE_COM", EnvName("me@example.com"))
	assert.Equal(t, "KEEP_MIGRATE_TOKEN_A1_B", EnvName("a1-b"))
}

func TestEnvStore(t *testing.T) {
	env := map[string]string{"KEEP_MIGRATE_TOKEN_SRC_EXAMPLE_COM": "tok"}
	store := EnvStore{Lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	token, err := store.Token(DefaultService, "src@example.com")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	_, err = store.Token(DefaultService, "dst@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(DefaultService, "src@example.com", "secret"))

	token, err := KeyringStore{}.Token(DefaultService, "src@example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	_, err = KeyringStore{}.Token(DefaultService, "missing@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

type failingStore struct{ err error }

func (f failingStore) Token(string, string) (string, error) { return "", f.err }

func TestChain(t *testing.T) {
	keyring.MockInit()
	env := EnvStore{Lookup: func(k string) (string, bool) {
		if k == EnvName("dst@example.com") {
			return "from-env", true
		}
		return "", false
	}}
	chain := Chain{KeyringStore{}, env}

	token, err := chain.Token(DefaultService, "dst@example.com")
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)

	_, err = chain.Token(DefaultService, "nobody@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	boom := errors.New("keyring locked")
	_, err = Chain{failingStore{boom}, env}.Token(DefaultService, "dst@example.com")
	assert.ErrorIs(t, err, boom)
}
