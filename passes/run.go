package passes

import "github.com/gpuir/shady/ir"

// recoverStageError turns a panicking *ir.Error (or any other error)
// raised by a constructor deep inside this pass into a normal returned
// error, so the pipeline in the root package never sees a panic escape
// a stage boundary.
func recoverStageError(err *error) {
	if r := recover(); r != nil {
		switch e := r.(type) {
		case *ir.Error:
			*err = e
		case error:
			*err = e
		default:
			panic(r)
		}
	}
}
