package util

import (
	"fmt"
	"io"
)

// WriteWithValidation write p into w and validate the written data length
//
// a nil writer swallows p, which is how discarded sinks are modelled
func WriteWithValidation(w io.Writer, p []byte) (int, error) {
	if w == nil {
		return len(p), nil
	}
	wn, err := w.Write(p)
	if err != nil {
		return wn, err
	}
	if wn != len(p) {
		return wn, io.ErrShortWrite
	}
	return wn, nil
}

// ErrWrapper wrap the error message except io.EOF
func ErrWrapper(err error, msg string, args ...interface{}) error {
	//do not wrap io.EOF
	if err == io.EOF {
		return err
	}
	if err == nil {
		return fmt.Errorf(msg, args...)
	}
	return fmt.Errorf(msg+" [error "+err.Error()+"]", args...)
}
