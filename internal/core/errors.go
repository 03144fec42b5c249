package core

import "errors"

// Operation failures are classified into one of these kinds before they
// leave the service layer. The HTTP layer maps each kind to a status
// code and a stable error code string.
var (
	ErrNoHousehold        = errors.New("user does not belong to a household")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyPaid        = errors.New("expense already paid by this user")
	ErrAlreadySettled     = errors.New("expense already fully settled")
	ErrNotEditable        = errors.New("only permanent expenses can be edited")
	ErrAlreadyMember      = errors.New("already a member of this household")
	ErrCreatorCannotLeave = errors.New("household creator cannot leave")
)
