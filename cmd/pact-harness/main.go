package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/form3tech-oss/pact-harness/internal/app/configuration"
	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/contracts"
	"github.com/form3tech-oss/pact-harness/internal/app/providers"
	"github.com/form3tech-oss/pact-harness/internal/app/providerstate"
	"github.com/form3tech-oss/pact-harness/internal/app/verifier"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "pact-harness",
	Short:        "Record and verify consumer driven contracts",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve [provider...]",
	Short: "Run mock providers and the admin API until interrupted",
	RunE:  runServe,
}

var recordCmd = &cobra.Command{
	Use:   "record [provider...]",
	Short: "Record the frontend contracts and write them as pact files",
	RunE:  runRecord,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <pact file>",
	Short: "Verify a pact file against a provider",
	Long: `Verify replays every interaction of the pact file against the provider.

Without --provider-url the built-in mock of the pact's provider is started and
verified in process. The command exits non-zero when any interaction fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var (
	pactDirFlag         string
	providerURLFlag     string
	stateSetupURLFlag   string
	reportFlag          string
	publishFlag         bool
	providerVersionFlag string
)

func init() {
	recordCmd.Flags().StringVar(&pactDirFlag, "dir", "", "Directory pact files are written to (default $PACT_DIR)")

	verifyCmd.Flags().StringVar(&providerURLFlag, "provider-url", "", "Base URL of the provider to verify")
	verifyCmd.Flags().StringVar(&stateSetupURLFlag, "state-setup-url", "", "Provider states setup URL (default <provider-url>"+providers.StateSetupPath+")")
	verifyCmd.Flags().StringVar(&reportFlag, "report", "", "Write the report to this file, as YAML for .yaml/.yml and JSON otherwise")
	verifyCmd.Flags().BoolVar(&publishFlag, "publish", false, "Publish the pact when verification succeeds")
	verifyCmd.Flags().StringVar(&providerVersionFlag, "provider-version", "", "Version to publish under (default $PROVIDER_VERSION)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func providerNames(args []string) []string {
	if len(args) == 0 {
		return providers.Names
	}
	return args
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := configuration.NewFromEnv()
	if err != nil {
		return err
	}

	servers := configuration.NewServers()
	for _, name := range providerNames(args) {
		port, err := config.Port(name)
		if err != nil {
			return err
		}
		log.Infof("setting up %s provider on port %d", name, port)
		if _, err := servers.Start(name, port); err != nil {
			return err
		}
	}

	adminServer := configuration.ServeAdminAPI(config, servers)

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(ctx); err != nil {
		log.Error(err)
	}
	servers.ShutdownAll(ctx)
	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	config, err := configuration.NewFromEnv()
	if err != nil {
		return err
	}
	if pactDirFlag != "" {
		config.PactDir = pactDirFlag
	}

	for _, name := range providerNames(args) {
		scenarios, err := contracts.ForProvider(name)
		if err != nil {
			return err
		}
		path, err := contracts.Record(cmd.Context(), config.Recording(), name, scenarios)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d interactions written to %s\n", name, len(scenarios), path)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	config, err := configuration.NewFromEnv()
	if err != nil {
		return err
	}

	artifact, err := contract.Load(args[0])
	if err != nil {
		return err
	}

	verifierConfig := verifier.Config{ProviderVersion: config.ProviderVersion}
	if providerVersionFlag != "" {
		verifierConfig.ProviderVersion = providerVersionFlag
	}
	if publishFlag {
		verifierConfig.Publisher = config.Publisher()
		if verifierConfig.Publisher == nil {
			return errors.New("publishing needs BROKER_URL or REDIS_ADDR")
		}
	}

	if providerURLFlag == "" {
		server, err := providers.New(artifact.Provider)
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return err
		}
		defer server.Close(context.Background())
		verifierConfig.BaseURL = server.URL()
		verifierConfig.StateHandler = server
	} else {
		stateSetupURL := stateSetupURLFlag
		if stateSetupURL == "" {
			stateSetupURL = strings.TrimSuffix(providerURLFlag, "/") + providers.StateSetupPath
		}
		verifierConfig.BaseURL = providerURLFlag
		verifierConfig.StateHandler = providerstate.NewRemoteSetup(stateSetupURL, artifact.Consumer)
	}

	v, err := verifier.New(verifierConfig)
	if err != nil {
		return err
	}

	report, verifyErr := v.VerifyArtifact(cmd.Context(), artifact)
	report.Print(cmd.OutOrStdout())
	if reportFlag != "" {
		if err := report.Save(reportFlag); err != nil {
			return err
		}
	}
	return verifyErr
}
