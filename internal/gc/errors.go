package gc

import "errors"

var (
	errMissingDeps = errors.New("gc: frames, classifier and objects are required")
	errBadInterval = errors.New("gc: cycle interval must be positive")
	errBadBudget   = errors.New("gc: frames per cycle must be positive")
	errBadMaxAge   = errors.New("gc: max age must be positive")
)
