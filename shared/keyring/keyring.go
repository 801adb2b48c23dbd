// Package keyring keeps the agent bearer token in the operating system
// keyring so it never has to be written to the config file.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const ServiceName = "switchboard"

var (
	ErrNotFound = errors.New("secret not found")
	ErrTooLarge = errors.New("secret too large for the keyring")
	ErrEmpty    = errors.New("secret must not be empty")
)

// SecretError reports which keyring entry an operation failed on.
type SecretError struct {
	Op  string
	Key string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("keyring %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SecretError) Unwrap() error {
	return e.Err
}

// Provider stores secrets by key.
type Provider interface {
	Get(key string) (string, error)
	Set(key string, value string) error
	Delete(key string) error
}

type KeyringProvider struct {
	service string
}

var _ Provider = (*KeyringProvider)(nil)

func NewKeyringProvider() *KeyringProvider {
	return NewKeyringProviderForService(ServiceName)
}

func NewKeyringProviderForService(service string) *KeyringProvider {
	return &KeyringProvider{
		service: service,
	}
}

func (k *KeyringProvider) Get(key string) (string, error) {
	secret, err := keyring.Get(k.service, key)
	if err != nil {
		return "", toError("get", key, err)
	}
	return secret, nil
}

// Set stores value under key. Surrounding whitespace is dropped since tokens
// usually arrive from a pasted line.
func (k *KeyringProvider) Set(key string, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return &SecretError{Op: "set", Key: key, Err: ErrEmpty}
	}

	if err := keyring.Set(k.service, key, value); err != nil {
		return toError("set", key, err)
	}
	return nil
}

func (k *KeyringProvider) Delete(key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		return toError("delete", key, err)
	}
	return nil
}

func toError(op, key string, err error) error {
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		err = ErrNotFound
	case errors.Is(err, keyring.ErrSetDataTooBig):
		err = ErrTooLarge
	}
	return &SecretError{Op: op, Key: key, Err: err}
}
