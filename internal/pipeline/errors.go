package pipeline

import (
	"errors"

	"github.com/John-Robertt/submerge/internal/dispatch"
	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/merge"
	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/clash"
	"github.com/John-Robertt/submerge/internal/sub/ss"
	"github.com/John-Robertt/submerge/internal/worker"
)

var (
	ErrMissingURL    = errors.New("primary source url is required")
	ErrMissingOutput = errors.New("output path is required")
	ErrNothingToDo   = errors.New("no subscription urls found")
)

// AppErrorOf extracts the structured payload from any stage error.
func AppErrorOf(err error) (model.AppError, bool) {
	if err == nil {
		return model.AppError{}, false
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.AppError, true
	}
	var se *ss.ParseError
	if errors.As(err, &se) {
		return se.AppError, true
	}
	var ce *clash.ParseError
	if errors.As(err, &ce) {
		return ce.AppError, true
	}
	var ee *worker.ExecError
	if errors.As(err, &ee) {
		return ee.AppError, true
	}
	var me *merge.MergeError
	if errors.As(err, &me) {
		return me.AppError, true
	}
	var pe *dispatch.PanicError
	if errors.As(err, &pe) {
		return model.AppError{Code: "WORKER_PANIC", Message: pe.Error(), Stage: "convert"}, true
	}
	return model.AppError{}, false
}
