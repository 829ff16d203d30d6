// Package secret stores the daemon password in the operating system's
// keyring rather than in the configuration file.
package secret

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "cadenza"
	account = "mpd"
)

// StoreError wraps a keyring failure. A missing entry is not an error;
// this is reserved for the store itself being unusable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("secret store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// GetPassword fetches the stored daemon password. The second return is
// false when no password has been stored.
func GetPassword() (string, bool, error) {
	password, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StoreError{Op: "get", Err: err}
	}
	return password, true, nil
}

// SetPassword stores the daemon password, replacing any previous one.
func SetPassword(password string) error {
	if err := keyring.Set(service, account, password); err != nil {
		return &StoreError{Op: "set", Err: err}
	}
	return nil
}

// ClearPassword removes the stored password. Clearing an empty store
// is a no-op.
func ClearPassword() error {
	err := keyring.Delete(service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}
