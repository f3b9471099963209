package cmd

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stesla/tn3287/charset"
	"github.com/stesla/tn3287/datastream"
	"github.com/stesla/tn3287/scs"
	"github.com/stesla/tn3287/session"
	"github.com/stesla/tn3287/sink"
	"github.com/stesla/tn3287/telnet"
	"gopkg.in/yaml.v2"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  showConfig,
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
}

func showConfig(cmd *cobra.Command, args []string) error {
	b, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

// sessionConfig builds the session from the settings. arg, if not empty,
// overrides the host setting.
func sessionConfig(arg string) (session.Config, error) {
	var cfg session.Config
	if arg == "" {
		arg = viper.GetString("host")
	}
	if arg == "" {
		return cfg, errors.New("no host given")
	}
	target, err := session.ParseTarget(arg)
	if err != nil {
		return cfg, err
	}
	if len(target.LUs) == 0 {
		target.LUs = viper.GetStringSlice("lu")
	}
	cfg.Target = target

	cfg.Functions = telnet.AllFunctions
	if names := viper.GetStringSlice("functions"); len(names) > 0 {
		f, ok := telnet.ParseFunctions(names)
		if !ok {
			return cfg, fmt.Errorf("unknown TN3270E function in %v", names)
		}
		cfg.Functions = f
	}

	if cfg.Sink, err = outputSink(); err != nil {
		return cfg, err
	}
	name := viper.GetString("output-charset")
	if name == "" {
		name = "UTF-8"
	}
	enc, err := charset.OutputEncoding(name)
	if err != nil {
		return cfg, err
	}
	cfg.Spool = sink.Options{
		Encoding: enc,
		CRLF:     viper.GetBool("crlf"),
		FFEOJ:    viper.GetBool("ffeoj"),
	}
	if cfg.Spool.TrnPre, err = expand(viper.GetString("trn-pre")); err != nil {
		return cfg, err
	}
	if cfg.Spool.TrnPost, err = expand(viper.GetString("trn-post")); err != nil {
		return cfg, err
	}

	cfg.StartTLS = viper.GetBool("starttls")
	if target.TLS || cfg.StartTLS {
		if cfg.TLS, err = tlsConfig(target); err != nil {
			return cfg, err
		}
	}
	if cfg.LockFile, err = expand(viper.GetString("lock-file")); err != nil {
		return cfg, err
	}

	cfg.TermType = viper.GetString("term-type")
	cfg.Assoc = viper.GetString("assoc")
	cfg.Proxy = viper.GetString("proxy")
	cfg.CodePage = viper.GetString("codepage")
	cfg.DataStream = datastream.Options{
		BufferSize: viper.GetInt("buffer-size"),
		BlankLines: viper.GetBool("blanklines"),
		EMFlush:    viper.GetBool("emflush"),
	}
	cfg.SCS = scs.Options{
		FFThru: viper.GetBool("ffthru"),
		FFSkip: viper.GetBool("ffskip"),
	}
	cfg.EOJTimeout = viper.GetDuration("eoj-timeout")
	cfg.IgnoreEOJ = viper.GetBool("ignore-eoj")
	cfg.Reconnect = viper.GetBool("reconnect")
	cfg.ReconnectDelay = viper.GetDuration("reconnect-delay")
	return cfg, nil
}

func outputSink() (sink.Sink, error) {
	command, file := viper.GetString("command"), viper.GetString("file")
	switch {
	case command != "" && file != "":
		return nil, errors.New("command and file are mutually exclusive")
	case command != "":
		return sink.Command{Cmd: command}, nil
	case file != "":
		path, err := expand(file)
		if err != nil {
			return nil, err
		}
		return sink.File{Path: path}, nil
	}
	return sink.Writer{W: os.Stdout}, nil
}

func tlsConfig(target session.Target) (*tls.Config, error) {
	ca, err := expand(viper.GetString("tls-ca-file"))
	if err != nil {
		return nil, err
	}
	return session.TLSConfig(target.Host(), viper.GetBool("tls-insecure"), ca, viper.GetString("tls-server-name"))
}

func expand(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return homedir.Expand(name)
}
