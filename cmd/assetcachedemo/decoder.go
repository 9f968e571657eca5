package main

import (
	"context"
	"io"
)

// textDecoder treats the bytes behind a key as UTF-8 text, with cost
// equal to byte length. It exists to give the CLI something concrete to
// decode without pulling in an asset format of its own.
type textDecoder struct{}

func (textDecoder) Decode(_ context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (textDecoder) EstimateCost(v string) (uint64, error) {
	return uint64(len(v)), nil
}
