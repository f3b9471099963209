package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stesla/tn3287/charset"
	"github.com/stesla/tn3287/datastream"
	"github.com/stesla/tn3287/session"
	"github.com/stesla/tn3287/telnet"
)

var (
	startCmd = &cobra.Command{
		Use:   "start [L:][lu[,lu...]@]host[:port]",
		Short: "connect to the host and print",
		Args:  cobra.MaximumNArgs(1),
		RunE:  start,
	}
)

func init() {
	f := startCmd.Flags()
	f.StringSlice("lu", nil, "LUs to try in order, unless the host argument names some")
	f.String("assoc", "", "associate with this display session (needs TN3270E)")
	f.String("term-type", telnet.DefaultTermType, "terminal type reported to the host")
	f.String("codepage", charset.DefaultCodePage, "host code page")
	f.String("output-charset", "UTF-8", "character set of the printed output")
	f.String("command", "", "shell command each print job is piped into")
	f.String("file", "", "file each print job is appended to")
	f.Bool("crlf", false, "end lines with CR LF")
	f.Bool("ffthru", false, "pass SCS form feeds through instead of padding the page")
	f.Bool("ffskip", false, "skip SCS form feeds on empty pages")
	f.Bool("ffeoj", false, "end each print job with a form feed")
	f.Bool("emflush", false, "end the print job at each EM order in unformatted 3270 output")
	f.Bool("blanklines", false, "print empty lines of formatted 3270 output")
	f.Int("buffer-size", datastream.DefaultBufferSize, "3270 page buffer size")
	f.Duration("eoj-timeout", 0, "end a print job after this long without data")
	f.Bool("ignore-eoj", false, "ignore PRINT-EOJ from the host")
	f.Bool("reconnect", false, "reconnect when the connection ends")
	f.Duration("reconnect-delay", session.DefaultReconnectDelay, "wait between connection attempts")
	f.String("proxy", "", "connect through a socks5:// or http:// proxy")
	f.Bool("starttls", true, "accept STARTTLS from the host")
	f.Bool("tls-insecure", false, "do not verify the host certificate")
	f.String("tls-ca-file", "", "PEM file of CAs to verify the host with")
	f.String("tls-server-name", "", "name to verify the host certificate against")
	f.String("trn-pre", "", "file copied untranslated to the start of each job")
	f.String("trn-post", "", "file copied untranslated to the end of each job")
	f.String("lock-file", "", "refuse to run while another session holds this file")
	f.String("raw-log", "", "copy every byte received from the host to this file")
	f.StringSlice("functions", nil, "TN3270E functions to ask for (default all)")
	f.VisitAll(func(fl *pflag.Flag) {
		viper.BindPFlag(fl.Name, fl)
	})
	rootCmd.AddCommand(startCmd)
}

func start(cmd *cobra.Command, args []string) error {
	l, traceFile, err := newLogger()
	if err != nil {
		return err
	}
	if traceFile != nil {
		defer traceFile.Close()
	}

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	cfg, err := sessionConfig(arg)
	if err != nil {
		return err
	}

	var rawLog *logFile
	if name := viper.GetString("raw-log"); name != "" {
		if rawLog, err = openLogFile(name); err != nil {
			return err
		}
		defer rawLog.Close()
		cfg.RawLog = rawLog
	}

	s, err := session.New(cfg, l.WithField("lu", strings.Join(cfg.Target.LUs, ",")))
	if err != nil {
		return err
	}
	l.Infof("tn3287 (pid %d) printing to %s", os.Getpid(), cfg.Sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigs)
	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGHUP:
				reopenLogs(l, traceFile, rawLog)
			case syscall.SIGUSR1:
				l.Info("flush requested")
				s.RequestFlush()
			default:
				l.Infof("received signal '%s', exiting", sig)
				cancel()
			}
		}
	}()

	err = s.Run(ctx)
	l.Infof("%d print jobs", s.Jobs())
	return err
}

func reopenLogs(l *log.Logger, files ...*logFile) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := f.Reopen(); err != nil {
			l.Warnf("reopening '%s': %v", f.path, err)
		}
	}
}
