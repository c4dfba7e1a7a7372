package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig *common.Config
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Serve reactive stores over HTTP",
		Long:    `Serve the stores of the configured backend over HTTP. The configuration can be set via command line flags or environment variables. The format of the environment variables is RKV_<flag> (e.g. RKV_DATA_DIR=/var/lib/rkv)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "shutdown-timeout"
	ServeCmd.PersistentFlags().Duration(key, 10*time.Second, cmdUtil.WrapString("How long to wait for open requests and pending writes on shutdown"))

	cmdUtil.SetupRuleFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	conf, err := cmdUtil.GetConfig()
	if err != nil {
		return err
	}
	serveCmdConfig = conf
	return nil
}

// run serves until SIGINT or SIGTERM, then drains requests and flushes pending writes
func run(cmd *cobra.Command, _ []string) error {
	rules := cmdUtil.GetRules()
	initial, err := rules.InitialValue()
	if err != nil {
		return err
	}
	opts, err := rules.Options()
	if err != nil {
		return err
	}

	reg, closeRegistry, err := cmdUtil.OpenRegistry(serveCmdConfig)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    serveCmdConfig.Endpoint,
		Handler: newHandler(reg, initial, opts, serveCmdConfig.LogLevel == "debug"),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		Logger.Infof("Starting HTTP server on %s", serveCmdConfig.Endpoint)
		Logger.Infof("Configuration:\n%s", serveCmdConfig)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		Logger.Infof("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("shutdown-timeout"))
		err = srv.Shutdown(shutdownCtx)
		cancel()
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	return errors.Join(err, closeRegistry())
}
