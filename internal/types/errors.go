package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace shared by every reflectx package.
const Codespace = "reflectx"

// Error taxonomy. Callers match with errors.Is; wrap with errorsmod.Wrapf to add context.
var (
	ErrInvalidParameter    = errorsmod.Register(Codespace, 2, "invalid parameter")
	ErrMissingField        = errorsmod.Register(Codespace, 3, "missing field")
	ErrNonConvergence      = errorsmod.Register(Codespace, 4, "iteration limit exceeded")
	ErrOpacityLookup       = errorsmod.Register(Codespace, 5, "no matching opacity table")
	ErrMissingInitialGuess = errorsmod.Register(Codespace, 6, "no initial pressure-temperature guess")
	ErrArtifactNotFound    = errorsmod.Register(Codespace, 7, "artifact not found")
	ErrDirectoryExists     = errorsmod.Register(Codespace, 8, "run directory already exists")
	ErrFormat              = errorsmod.Register(Codespace, 9, "value cannot be formatted as a table key")
	ErrDivision            = errorsmod.Register(Codespace, 10, "division by zero")
	ErrConfiguration       = errorsmod.Register(Codespace, 11, "invalid configuration")
	ErrEngine              = errorsmod.Register(Codespace, 12, "engine call failed")
	ErrConvergenceFailure  = errorsmod.Register(Codespace, 13, "climate run did not converge")
)
