// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package errs2_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/syncstorage-go/internal/errs2"
)

func TestGroup(t *testing.T) {
	group := errs2.Group{}
	group.Go(func() error {
		return fmt.Errorf("first")
	})
	group.Go(func() error {
		return nil
	})
	group.Go(func() error {
		return fmt.Errorf("second")
	})
	group.Go(func() error {
		return fmt.Errorf("third")
	})

	allErrors := group.Wait()
	require.Len(t, allErrors, 3)
}
