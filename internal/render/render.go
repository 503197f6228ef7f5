package render

import (
	"errors"
	"fmt"
	"log"

	"github.com/John-Robertt/loonsub/internal/filter"
	"github.com/John-Robertt/loonsub/internal/model"
)

type Target string

const TargetLoon Target = "loon"

// Render serializes nodes into the proxy-line block for the given target.
func Render(target Target, nodes []model.Node, f filter.Filter, warn Warner) (string, error) {
	switch target {
	case TargetLoon:
		return NodeLines(nodes, f, warn)
	default:
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_TARGET",
				Message: fmt.Sprintf("不支持的 target：%s", target),
				Stage:   "render",
			},
		}
	}
}

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Warner receives one message per node that is dropped or only partially
// representable. Implementations must not block; a warning never changes
// the rendered output.
type Warner interface {
	Warn(msg string)
}

type WarnFunc func(msg string)

func (f WarnFunc) Warn(msg string) { f(msg) }

// logWarner is the sink used when callers pass a nil Warner.
var logWarner Warner = WarnFunc(func(msg string) {
	log.Printf("render: %s", msg)
})

func invalidFilterError(cause error) error {
	return &RenderError{
		AppError: model.AppError{
			Code:    "INVALID_FILTER",
			Message: "filter 参数不合法（显式传入了空的 filter）",
			Stage:   "render",
			Hint:    "use filter.None() to disable filtering",
		},
		Cause: cause,
	}
}

// applyFilter maps filter.ErrInvalid into the render error taxonomy so that
// both rendering entry points fail the same way.
func applyFilter(nodes []model.Node, f filter.Filter) ([]model.Node, error) {
	selected, err := filter.Apply(nodes, f)
	if err != nil {
		if errors.Is(err, filter.ErrInvalid) {
			return nil, invalidFilterError(err)
		}
		return nil, err
	}
	return selected, nil
}
