package frontend

import "fmt"

// SourceError is a user-visible parse error naming the offending source
// position, the shape wgsl.SourceError uses for the same purpose (spec
// §7: "user errors... reported with a source-language message").
type SourceError struct {
	Message string
	Line    int
	Column  int
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

func errAt(tok Token, format string, args ...interface{}) error {
	return &SourceError{Message: fmt.Sprintf(format, args...), Line: tok.Line, Column: tok.Column}
}
