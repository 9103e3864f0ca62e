package app

import (
	"fmt"

	"github.com/ibd1279/vks"
)

// vkErr wraps a failing result with the operation that produced it, so the
// single diagnostic line at the top level names the call that broke.
func vkErr(op string, result vks.Result) error {
	if !result.IsError() {
		return nil
	}
	return fmt.Errorf("%s: %w", op, result.AsErr())
}
