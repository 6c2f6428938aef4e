package local

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = fmt.Errorf("document %w", domain.ErrNotFound)

	// ErrInvalidID is returned for ids that cannot be used as file names
	ErrInvalidID = errors.New("invalid document id")
)
