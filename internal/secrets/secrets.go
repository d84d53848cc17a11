// Package secrets looks up the bearer token of an account.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const DefaultService = "google-keep-token"

var ErrTokenNotFound = errors.New("token not found")

// Store returns the token stored for account under service.
type Store interface {
	Token(service, account string) (string, error)
}

// KeyringStore reads tokens from the OS keyring.
type KeyringStore struct{}

func (KeyringStore) Token(service, account string) (string, error) {
	token, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w in keyring for %s", ErrTokenNotFound, account)
	}
	if err != nil {
		return "", fmt.Errorf("error reading keyring: %w", err)
	}
	return token, nil
}

// EnvStore reads KEEP_MIGRATE_TOKEN_<ACCOUNT>, where every character of the
// account that is not a letter or digit becomes an underscore.
type EnvStore struct {
	Lookup func(string) (string, bool)
}

func EnvName(account string) string {
	var b strings.Builder
	b.WriteString("KEEP_MIGRATE_TOKEN_")
	for _, r := range strings.ToUpper(account) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e EnvStore) Token(_, account string) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if token, ok := lookup(EnvName(account)); ok && token != "" {
		return token, nil
	}
	return "", fmt.Errorf("%w in environment for %s", ErrTokenNotFound, account)
}

// Chain asks each store in turn and returns the first token found. Errors
// other than a missing token stop the search.
type Chain []Store

func (c Chain) Token(service, account string) (string, error) {
	for _, s := range c {
		token, err := s.Token(service, account)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrTokenNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w for %s", ErrTokenNotFound, account)
}
