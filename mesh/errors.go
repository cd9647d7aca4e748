package mesh

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrMeshLoad reports degenerate or inconsistent geometry found while
	// building elements.
	ErrMeshLoad = errors.New("mesh load failure")
	// ErrUsage reports an invalid request rejected before any mutation.
	ErrUsage = errors.New("invalid mesh operation")
	// ErrPolicy reports a request the engine refuses to carry out.
	ErrPolicy = errors.New("unsupported mesh operation")
	// ErrNoMatch reports that a refinement sweep never matched any element.
	ErrNoMatch = errors.New("no element matched")
	// ErrInternal reports a broken store invariant.
	ErrInternal = errors.New("mesh inconsistency")
)

// LoadError carries the element being built and its vertex coordinates.
type LoadError struct {
	ElementID int
	Coords    []r2.Vec
	Reason    string
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "element #%d: %s", e.ElementID, e.Reason)
	if len(e.Coords) > 0 {
		sb.WriteString(" [")
		for i, c := range e.Coords {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "(%g, %g)", c.X, c.Y)
		}
		sb.WriteString("]")
	}
	return sb.String()
}

func (e *LoadError) Unwrap() error { return ErrMeshLoad }

// CurvedError is returned when an operation does not support curved elements.
type CurvedError struct {
	ElementID int
	Op        string
}

func (e *CurvedError) Error() string {
	return fmt.Sprintf("%s: element #%d is curved, this is not supported", e.Op, e.ElementID)
}

func (e *CurvedError) Unwrap() error { return ErrPolicy }

// RangeError reports a parameter below its allowed minimum.
type RangeError struct {
	Name  string
	Value int
	Min   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("parameter %s = %d is below the minimum %d", e.Name, e.Value, e.Min)
}

func (e *RangeError) Unwrap() error { return ErrPolicy }

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

func internalErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
