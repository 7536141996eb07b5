//go:build !linux

package main

import (
	"context"
	"errors"
)

func openLive(context.Context, string) (*device, error) {
	return nil, errors.New("radeonfb: live devices need Linux; use -dump")
}
