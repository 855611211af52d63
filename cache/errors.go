package cache

import (
	stderrors "errors"
	"fmt"

	errors "github.com/goliatone/go-errors"
)

// Text codes attached to errors produced by this package.
const (
	TextCodeKeyDerivation     = "KEY_DERIVATION_FAILED"
	TextCodeInvalidResultType = "INVALID_RESULT_TYPE"
	TextCodeInvalidNamespace  = "INVALID_NAMESPACE"
	TextCodeFetchPanicked     = "FETCH_PANICKED"
)

var (
	// ErrUnserializablePayload is the root cause of every key derivation
	// failure: the payload holds a value with no canonical form.
	ErrUnserializablePayload = stderrors.New("cache: payload cannot be serialized")

	// ErrInvalidResultType is returned by GetOrCompute when the value stored
	// under a key is not assignable to the requested type.
	ErrInvalidResultType = stderrors.New("cache: cached value has unexpected type")

	// ErrFetchPanicked is returned to every caller sharing a coalesced fetch
	// that panicked.
	ErrFetchPanicked = stderrors.New("cache: fetch panicked")
)

// IsKeyDerivationError reports whether err came from deriving a cache key.
func IsKeyDerivationError(err error) bool {
	var e *errors.Error
	return errors.As(err, &e) && e.TextCode == TextCodeKeyDerivation
}

func newKeyDerivationError(source error) error {
	return errors.Wrap(source, errors.CategoryBadInput, "failed to derive cache key").
		WithTextCode(TextCodeKeyDerivation)
}

func newInvalidResultTypeError(key string, got any, want string) error {
	e := errors.New(fmt.Sprintf("cached value for %s is %T, want %s", key, got, want), errors.CategoryInternal).
		WithTextCode(TextCodeInvalidResultType).
		WithMetadata(map[string]any{"key": key})
	e.Source = ErrInvalidResultType
	return e
}

func newInvalidNamespaceError(namespace, reason string) error {
	return errors.New(fmt.Sprintf("namespace %q %s", namespace, reason), errors.CategoryValidation).
		WithTextCode(TextCodeInvalidNamespace).
		WithMetadata(map[string]any{"namespace": namespace})
}

func newFetchPanicError(key string, recovered any) error {
	e := errors.New(fmt.Sprintf("fetch for %s panicked: %v", key, recovered), errors.CategoryInternal).
		WithTextCode(TextCodeFetchPanicked).
		WithMetadata(map[string]any{"key": key})
	e.Source = ErrFetchPanicked
	return e
}
