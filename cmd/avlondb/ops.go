package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/poiesic/avlondb"
)

var errInvalidValue = errors.New("value is not valid JSON")

func get(ctx context.Context, s *avlondb.Store, w io.Writer, key string) error {
	v, ok, err := avlondb.Load[json.RawMessage](ctx, s, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("key %q not found", key)
	}
	_, err = fmt.Fprintln(w, string(v))
	return err
}

func put(ctx context.Context, s *avlondb.Store, key, value string) error {
	v, err := parseValue(value)
	if err != nil {
		return err
	}
	return avlondb.Save(ctx, s, key, v)
}

func update(ctx context.Context, s *avlondb.Store, key, value string) error {
	v, err := parseValue(value)
	if err != nil {
		return err
	}
	return avlondb.Update(ctx, s, key, v)
}

func listRange(ctx context.Context, s *avlondb.Store, w io.Writer, start, end string) error {
	repo := avlondb.NewRepository[json.RawMessage](s, nil)
	return repo.Each(ctx, start, end, func(key string, v json.RawMessage) error {
		_, err := fmt.Fprintf(w, "%s\t%s\n", key, v)
		return err
	})
}

func parseValue(value string) (json.RawMessage, error) {
	if !json.Valid([]byte(value)) {
		return nil, fmt.Errorf("%w: %s", errInvalidValue, value)
	}
	return json.RawMessage(value), nil
}
