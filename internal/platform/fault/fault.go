// Package fault converts panics raised by collaborators into ordinary error
// results at the boundary of public service operations.
package fault

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Recover must be deferred with a pointer to the operation's named error
// result. A recovered panic is logged with its stack and replaced by
// sentinel, wrapped with the panic value.
//
//	func (s *Service) Do(ctx context.Context) (err error) {
//		defer fault.Recover(s.logger, "intake.submit", ErrUnexpected, &err)
//		...
//	}
func Recover(logger zerolog.Logger, op string, sentinel error, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error().
		Str("op", op).
		Str("panic", fmt.Sprint(r)).
		Bytes("stack", debug.Stack()).
		Msg("recovered panic in collaborator")
	if errp != nil {
		*errp = fmt.Errorf("%s: %w: %v", op, sentinel, r)
	}
}
