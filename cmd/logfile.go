package cmd

import (
	"os"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
)

// logFile is an append-only file that can be reopened after it has been
// rotated away.
type logFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func openLogFile(name string) (*logFile, error) {
	path, err := homedir.Expand(name)
	if err != nil {
		return nil, err
	}
	l := &logFile{path: path}
	if l.f, err = l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *logFile) open() (*os.File, error) {
	return os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (l *logFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Write(p)
}

// Reopen switches to a fresh file at the same path.
func (l *logFile) Reopen() error {
	f, err := l.open()
	if err != nil {
		return err
	}
	l.mu.Lock()
	old := l.f
	l.f = f
	l.mu.Unlock()
	return old.Close()
}

func (l *logFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
