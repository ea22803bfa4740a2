package engine

import "errors"

var (
	errNegativeTimestamp = errors.New("negative timestamp")
	errWrongVocabulary   = errors.New("pose vocabulary does not match session mode")
	errUnknownViseme     = errors.New("viseme id outside coarse vocabulary")
)
