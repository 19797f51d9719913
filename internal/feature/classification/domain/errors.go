// Package domain defines domain-level errors for the classification feature.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors for the inference pipeline.
// Upper layers decide whether a failure is request-scoped or fatal for the process.
var (
	// ErrResourceLoad indicates that the model artifact could not be located or read.
	// It is a deployment-time fault and should stop the service from serving.
	ErrResourceLoad = errors.New("model artifact could not be loaded")

	// ErrDecode indicates that the input file is unreadable or not a supported image format.
	ErrDecode = errors.New("image could not be decoded")

	// ErrGraphImport indicates that the model bytes could not be turned into a computation graph.
	ErrGraphImport = errors.New("computation graph could not be imported")

	// ErrExecution indicates that the graph failed while running.
	ErrExecution = errors.New("graph execution failed")

	// ErrShapeMismatch indicates that the model produced an output that is not [1, N].
	ErrShapeMismatch = errors.New("unexpected output tensor shape")

	// ErrEmptyProbabilities is returned when there is nothing to format.
	ErrEmptyProbabilities = errors.New("probability vector is empty")
)

// ShapeMismatchError carries the shape the model actually produced.
type ShapeMismatchError struct {
	Shape []int64
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("expected model to produce a [1 N] shaped tensor where N is the number of labels, instead it produced one with shape %v", e.Shape)
}

// Is makes errors.Is(err, ErrShapeMismatch) hold for any ShapeMismatchError.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
