// DSpace Submission Service
//
// Queue-driven worker that publishes submission packages to a DSpace
// repository and reports outcomes on per-request result queues.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"go.dspacesubmit.tech/internal/common/health"
	"go.dspacesubmit.tech/internal/config"
	"go.dspacesubmit.tech/internal/dspace"
	"go.dspacesubmit.tech/internal/objectstore"
	"go.dspacesubmit.tech/internal/params"
	sqsadapter "go.dspacesubmit.tech/internal/queue/sqs"
	"go.dspacesubmit.tech/internal/submitter"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dss",
		Short:         "DSpace Submission Service worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newStartCommand(),
		newLoadSampleInputDataCommand(),
		newLoadSampleOutputDataCommand(),
		newCreateQueueCommand(),
		newVerifyDSpaceConnectionCommand(),
	)
	return root
}

// loadConfig builds the worker configuration, resolving prod and stage
// profiles through the parameter store, and installs the default logger.
func loadConfig(ctx context.Context) (*config.Config, error) {
	var store params.Provider
	if env := os.Getenv("WORKSPACE"); env == "prod" || env == "stage" {
		var err error
		if store, err = params.NewProvider(nil); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(ctx, store)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	if ssmStore, ok := store.(*params.SSMProvider); ok {
		confirmation, err := ssmStore.CheckPermissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("SSM permission check failed: %w", err)
		}
		slog.Info(confirmation)
	}
	return cfg, nil
}

func newQueueClient(ctx context.Context, cfg *config.Config) (*sqsadapter.Client, error) {
	clientCfg := &sqsadapter.ClientConfig{
		Region:         cfg.AWSRegion,
		CustomEndpoint: cfg.SQSEndpointURL,
	}
	if cfg.SQSEndpointURL != "" {
		clientCfg.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		clientCfg.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	return sqsadapter.NewClientWithConfig(ctx, clientCfg)
}

func newStartCommand() *cobra.Command {
	var (
		queueName  string
		wait       int32
		visibility int32
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Poll the input queue and process submissions until it drains",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if queueName == "" {
				queueName = cfg.InputQueue
			}

			slog.Info("Starting DSpace Submission Service",
				"version", version, "buildTime", buildTime, "env", cfg.Env,
				"inputQueue", queueName, "skipProcessing", cfg.SkipProcessing)

			queues, err := newQueueClient(ctx, cfg)
			if err != nil {
				return err
			}
			repo := dspace.NewClient(cfg.DSpaceAPIURL, cfg.DSpaceTimeout)
			store := objectstore.NewReader()

			healthChecker := health.NewChecker()
			healthChecker.AddReadinessCheck(health.SQSCheck(queueName, func() error {
				checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return queues.HealthCheck(checkCtx, queueName)
			}))
			healthChecker.AddReadinessCheck(health.DSpaceCheck(func() error {
				checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return repo.Status(checkCtx)
			}))

			server := startHTTPServer(cfg.HTTPPort, healthChecker)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				server.Shutdown(shutdownCtx)
			}()

			processor := submitter.NewProcessor(queues, repo, store, cfg)
			if err := processor.Run(ctx, queueName, wait, visibility); err != nil {
				return err
			}

			slog.Info("Processing complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&queueName, "queue", "", "input queue name (defaults to configuration)")
	cmd.Flags().Int32Var(&wait, "wait", sqsadapter.MaxWaitSeconds, "seconds to wait for long polling, max 20")
	cmd.Flags().Int32Var(&visibility, "visibility", 30, "message visibility timeout in seconds")
	return cmd
}

func newLoadSampleInputDataCommand() *cobra.Command {
	var (
		inputQueue  string
		outputQueue string
		filePath    string
	)

	cmd := &cobra.Command{
		Use:   "load-sample-input-data",
		Short: "Send sample submission messages to a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			queues, err := newQueueClient(ctx, cfg)
			if err != nil {
				return err
			}

			messages, err := submitter.GenerateSubmissionMessages(filePath, outputQueue)
			if err != nil {
				return err
			}
			count, err := submitter.LoadSampleMessages(ctx, queues, inputQueue, messages)
			if err != nil {
				return err
			}
			fmt.Printf("%d sample messages loaded into queue '%s'\n", count, inputQueue)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputQueue, "input-queue", "i", "", "queue to load sample messages into")
	cmd.Flags().StringVarP(&outputQueue, "output-queue", "o", "", "result queue the samples should name")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to a sample fixture file")
	cmd.MarkFlagRequired("input-queue")
	cmd.MarkFlagRequired("output-queue")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newLoadSampleOutputDataCommand() *cobra.Command {
	var (
		outputQueue string
		filePath    string
	)

	cmd := &cobra.Command{
		Use:   "load-sample-output-data",
		Short: "Send sample result messages to a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			queues, err := newQueueClient(ctx, cfg)
			if err != nil {
				return err
			}

			messages, err := submitter.GenerateResultMessages(filePath)
			if err != nil {
				return err
			}
			count, err := submitter.LoadSampleMessages(ctx, queues, outputQueue, messages)
			if err != nil {
				return err
			}
			fmt.Printf("%d sample result messages loaded into queue '%s'\n", count, outputQueue)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputQueue, "output-queue", "o", "", "queue to load sample result messages into")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to a sample fixture file")
	cmd.MarkFlagRequired("output-queue")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newCreateQueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-queue NAME",
		Short: "Create a named queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			queues, err := newQueueClient(ctx, cfg)
			if err != nil {
				return err
			}

			url, err := queues.CreateQueue(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Queue '%s' created: %s\n", args[0], url)
			return nil
		},
	}
}

func newVerifyDSpaceConnectionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-dspace-connection",
		Short: "Log in to DSpace with the configured credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			repo := dspace.NewClient(cfg.DSpaceAPIURL, cfg.DSpaceTimeout)
			if err := repo.Login(ctx, cfg.DSpaceUser, cfg.DSpacePassword); err != nil {
				return fmt.Errorf("failed to authenticate to DSpace at '%s': %w",
					cfg.DSpaceAPIURL, err)
			}
			slog.Info("Successfully authenticated to DSpace", "url", cfg.DSpaceAPIURL,
				"user", cfg.DSpaceUser)
			return nil
		},
	}
}

// startHTTPServer serves health and metrics while the message loop runs.
func startHTTPServer(port int, checker *health.Checker) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/q/health", checker.HandleHealth)
	r.Get("/q/health/live", checker.HandleLive)
	r.Get("/q/health/ready", checker.HandleReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/q/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
	return server
}
