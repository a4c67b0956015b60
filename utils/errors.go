package utils

import "errors"

// Error kinds returned by the colour mapping engine. Callers inspect them
// with errors.Is; the messages carry the details.
var (
	ErrNullImage        = errors.New("no input volume")
	ErrInvalidColormap  = errors.New("invalid colormap")
	ErrEmptyVolume      = errors.New("empty volume")
	ErrDegenerateWindow = errors.New("degenerate colour window")
	ErrInvalidWindow    = errors.New("invalid colour window")
)
