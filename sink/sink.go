// Package sink delivers print jobs to their destination.
package sink

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

// ErrSink marks every failure to deliver output.
var ErrSink = errors.New("output sink failure")

// Sink opens one destination per print job.
type Sink interface {
	Open() (io.WriteCloser, error)
	String() string
}

// Command pipes each job into a new shell command, like lpr.
type Command struct {
	Cmd string
}

func (c Command) Open() (io.WriteCloser, error) {
	cmd := exec.Command("/bin/sh", "-c", c.Cmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	w, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &commandJob{cmd: cmd, WriteCloser: w}, nil
}

func (c Command) String() string { return "command '" + c.Cmd + "'" }

type commandJob struct {
	io.WriteCloser
	cmd *exec.Cmd
}

func (j *commandJob) Close() error {
	err := j.WriteCloser.Close()
	if werr := j.cmd.Wait(); werr != nil {
		return werr
	}
	return err
}

// File appends each job to a file.
type File struct {
	Path string
}

func (f File) Open() (io.WriteCloser, error) {
	return os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (f File) String() string { return "file '" + f.Path + "'" }

// Writer sends every job to the same writer, which is never closed.
type Writer struct {
	W io.Writer
}

func (w Writer) Open() (io.WriteCloser, error) {
	return nopCloser{w.W}, nil
}

func (w Writer) String() string { return "stdout" }

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
