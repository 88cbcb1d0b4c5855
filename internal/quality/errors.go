package quality

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

var (
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("invalid configuration")
	// ErrDomain matches every *DomainError.
	ErrDomain = errors.New("mathematically undefined operation")
	// ErrDataShape matches every *DataShapeError.
	ErrDataShape = dataset.ErrShape
)

// DataShapeError reports an absent target column or an unknown name in a
// column subset.
type DataShapeError = dataset.ShapeError

// ConfigError reports an invalid method name, strategy, mapping or weight.
// It is always returned before any computation starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// DomainError reports an operation that is undefined for the data, such as
// Box-Cox on non-positive values.
type DomainError struct {
	Op     string
	Column string
	Reason string
	// Pairing marks a method/strategy combination rejected before any data
	// is read. Such errors also match ErrConfig.
	Pairing bool
}

func (e *DomainError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: column %q: %s", e.Op, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *DomainError) Is(target error) bool {
	return target == ErrDomain || (e.Pairing && target == ErrConfig)
}

func configErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
