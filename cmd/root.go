package cmd

import (
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          "tn3287",
		Short:        "tn3287 is a TN3270E printer session that prints to a command, a file or stdout",
		SilenceUsage: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tn3287.yaml)")
	flags.String("log-level", "info", "log level: trace shows every order, debug every negotiation step")
	flags.String("trace-file", "", "write the log to this file instead of stderr")
	flags.String("debug-addr", "", "serve pprof on this address")
	for _, name := range []string{"log-level", "trace-file", "debug-addr"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalln("error finding home directory:", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".tn3287")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("tn3287")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.ReadInConfig()
}

// newLogger sets up the log from log-level and trace-file. The returned
// file, if any, is reopened on SIGHUP.
func newLogger() (*log.Logger, *logFile, error) {
	l := log.New()
	l.SetFormatter(new(log.TextFormatter))
	level, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, nil, err
	}
	l.SetLevel(level)

	var f *logFile
	if name := viper.GetString("trace-file"); name != "" {
		if f, err = openLogFile(name); err != nil {
			return nil, nil, err
		}
		l.SetOutput(f)
	}

	if used := viper.ConfigFileUsed(); used != "" {
		l.Debugf("loaded config at '%s'", used)
		viper.OnConfigChange(func(e fsnotify.Event) {
			if level, err := log.ParseLevel(viper.GetString("log-level")); err == nil && level != l.GetLevel() {
				l.Infof("log level now %s", level)
				l.SetLevel(level)
			}
		})
		viper.WatchConfig()
	}

	if addr := viper.GetString("debug-addr"); addr != "" {
		go launchProfiler(l, addr)
	}
	return l, f, nil
}

func launchProfiler(l *log.Logger, addr string) {
	l.Printf("pprof listening on '%s'", addr)
	l.Println(http.ListenAndServe(addr, nil))
}
