package dataset

import (
	"fmt"

	"github.com/armorlens/api/pkg/domain/shared"
)

// Domain errors for dataset operations. Each wraps a shared sentinel so the
// HTTP layer can map it with errors.Is.
var (
	// Validation errors
	ErrInvalidSourceKind = fmt.Errorf("%w: invalid source kind", shared.ErrInvalidInput)
	ErrLocationRequired  = fmt.Errorf("%w: source location is required", shared.ErrInvalidInput)

	// Not found errors
	ErrNoDataset  = fmt.Errorf("%w: no dataset loaded", shared.ErrNotFound)
	ErrNoSnapshot = fmt.Errorf("%w: no dataset snapshot stored", shared.ErrNotFound)

	// Operation errors
	ErrNotRefreshable = shared.NewValidationError("dataset source cannot be refreshed")
)
