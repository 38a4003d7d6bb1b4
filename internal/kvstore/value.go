package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GetJSON reads key and decodes it into v.
func GetJSON(r Reader, key Key, v any) error {
	data, err := r.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and writes it under key.
func PutJSON(t Txn, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.Put(key, data)
}

// Exists reports whether key has a value.
func Exists(r Reader, key Key) (bool, error) {
	_, err := r.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
