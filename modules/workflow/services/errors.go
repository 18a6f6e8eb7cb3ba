package services

import (
	"errors"
	"fmt"

	"github.com/northbeam/capitalgate/pkg/serrors"
	"github.com/northbeam/capitalgate/pkg/store"
)

// mapStoreError keeps the error taxonomy honest: a missing record is a 404,
// anything else from the store is a distinct persistence failure that must
// not masquerade as an empty result.
func mapStoreError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return serrors.NotFound("NOT_FOUND", fmt.Sprintf("%s not found", what))
	}
	return serrors.Persistence(fmt.Sprintf("reading %s failed", what), err)
}
