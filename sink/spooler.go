package sink

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/stesla/tn3287/telnet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options control how decoded text turns into job bytes.
type Options struct {
	// Encoding of the output; UTF-8 when nil.
	Encoding encoding.Encoding
	// CRLF writes every newline as CR LF.
	CRLF bool
	// FFEOJ ends every job that printed something with a form feed.
	FFEOJ bool
	// TrnPre and TrnPost name files copied verbatim to the start and end of
	// each job.
	TrnPre, TrnPost string
}

// Spooler groups output into print jobs. A job opens on the first write and
// is delivered by EndJob.
type Spooler struct {
	sink Sink
	opts Options
	log  log.Ext1FieldLogger
	text transform.Transformer

	job     io.WriteCloser
	printed bool
	written int64
	jobs    int
}

func NewSpooler(s Sink, opts Options, l log.Ext1FieldLogger) *Spooler {
	enc := opts.Encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	return &Spooler{
		sink: s,
		opts: opts,
		log:  l,
		text: transform.Chain(&newlineEncoder{crlf: opts.CRLF}, encoding.ReplaceUnsupported(enc.NewEncoder())),
	}
}

// Pending reports whether a job is open.
func (s *Spooler) Pending() bool { return s.job != nil }

// Jobs is the number of jobs delivered so far.
func (s *Spooler) Jobs() int { return s.jobs }

// WriteString adds decoded text to the current job.
func (s *Spooler) WriteString(str string) error {
	if str == "" {
		return nil
	}
	out, _, err := transform.String(s.text, str)
	if err != nil {
		return sinkError("encode", err)
	}
	s.printed = true
	return s.write([]byte(out))
}

// WriteTransparent adds bytes to the current job without translation.
func (s *Spooler) WriteTransparent(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return s.write(b)
}

// EndJob delivers the current job, if there is one.
func (s *Spooler) EndJob() error {
	if s.job == nil {
		return nil
	}
	var err error
	if s.opts.FFEOJ && s.printed {
		err = s.WriteString("\f")
	}
	if err == nil && s.opts.TrnPost != "" {
		err = s.copyFile(s.opts.TrnPost)
	}
	if cerr := s.job.Close(); cerr != nil && err == nil {
		err = sinkError("close job", cerr)
	}
	s.job = nil
	s.jobs++
	if err != nil {
		s.log.WithError(err).Warnf("print job %d to %s failed", s.jobs, s.sink)
		return err
	}
	s.log.Infof("print job %d complete, %d bytes to %s", s.jobs, s.written, s.sink)
	return nil
}

func (s *Spooler) write(b []byte) error {
	if err := s.open(); err != nil {
		return err
	}
	n, err := s.job.Write(b)
	s.written += int64(n)
	if err != nil {
		return sinkError("write", err)
	}
	return nil
}

func (s *Spooler) open() error {
	if s.job != nil {
		return nil
	}
	job, err := s.sink.Open()
	if err != nil {
		return sinkError("open "+s.sink.String(), err)
	}
	s.job, s.printed, s.written = job, false, 0
	s.log.Debugf("print job %d started", s.jobs+1)
	if s.opts.TrnPre != "" {
		return s.copyFile(s.opts.TrnPre)
	}
	return nil
}

func (s *Spooler) copyFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return sinkError("copy", err)
	}
	defer f.Close()
	n, err := io.Copy(s.job, f)
	s.written += n
	if err != nil {
		return sinkError("copy "+name, err)
	}
	return nil
}

// sinkError marks err as an output failure: answered, not fatal.
func sinkError(op string, err error) error {
	return &telnet.Error{Kind: telnet.ResourceError, Op: op, Err: fmt.Errorf("%w: %w", ErrSink, err)}
}

// newlineEncoder writes LF as CR LF when crlf is set.
type newlineEncoder struct {
	crlf bool
}

func (*newlineEncoder) Reset() {}

func (e *newlineEncoder) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	for i, b := range src {
		buf := []byte{b}
		if b == '\n' && e.crlf {
			buf = []byte("\r\n")
		}
		if nDst+len(buf) > len(dst) {
			err = transform.ErrShortDst
			break
		}
		nDst += copy(dst[nDst:], buf)
		nSrc = i + 1
	}
	return
}
