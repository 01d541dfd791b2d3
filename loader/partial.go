package loader

import (
	stderrors "errors"
	"fmt"
)

// PartialError reports a batch fetch that failed for some keys while
// succeeding for others. Keys in Failed resolve with their individual
// error; keys in Values resolve normally; keys in neither resolve as not
// found. BatchFuncs return it when the downstream store can distinguish
// per-key failures.
type PartialError[K comparable, V any] struct {
	Values map[K]V
	Failed map[K]error
}

// Error implements the error interface
func (pe *PartialError[K, V]) Error() string {
	return fmt.Sprintf("batch partially failed: %d keys errored", len(pe.Failed))
}

func asPartial[K comparable, V any](err error, target **PartialError[K, V]) bool {
	return stderrors.As(err, target)
}
