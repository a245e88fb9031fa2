package mapping

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/eslsoft/intentd/internal/entity"
)

// ToConnectError maps domain errors onto connect codes. Errors already carrying a code pass through.
func ToConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, entity.ErrUnknownApplication), errors.Is(err, entity.ErrUnknownIntent),
		errors.Is(err, entity.ErrUnknownEntityType):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, entity.ErrInvalidQuery):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, entity.ErrInconsistentClassification):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, entity.ErrDuplicateDefinition):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
