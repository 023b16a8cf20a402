package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chat-relay/handler"
	"chat-relay/internal/config"
	"chat-relay/internal/integrations/gemini"
	"chat-relay/internal/integrations/paramstore"
	"chat-relay/internal/metrics"
	"chat-relay/internal/usecase"
)

// Execute runs the root command with os.Args. SIGINT and SIGTERM cancel the
// command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree around a fresh viper instance.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.New())
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "chat-relay",
		Short: "Relay chat messages to the Gemini API and return the reply as JSON",
		Long: `chat-relay accepts {"message": "..."} on POST /api/chat/, forwards it to the
Gemini generateContent endpoint with a fixed assistant preamble, generation
config and safety settings, and answers {"response": "...", "status": "success"}.

Upstream failures are reported inside the response text, never as HTTP errors.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.String("model", gemini.DefaultModel, "Gemini model id (env GEMINI_MODEL)")
	flags.String("base-url", gemini.DefaultBaseURL, "Generative Language API base URL (env GEMINI_BASE_URL)")
	flags.Duration("timeout", gemini.DefaultTimeout, "upstream request timeout (env UPSTREAM_TIMEOUT)")
	flags.String("log-level", "info", "debug, info, warn or error (env LOG_LEVEL)")
	_ = v.BindPFlag(config.KeyModel, flags.Lookup("model"))
	_ = v.BindPFlag(config.KeyBaseURL, flags.Lookup("base-url"))
	_ = v.BindPFlag(config.KeyTimeout, flags.Lookup("timeout"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	root.AddCommand(newServeCommand(v), newLambdaCommand(v))
	return root
}

func newLambdaCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve the chat endpoint as an API Gateway proxy Lambda",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			h, err := buildHandler(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			lambda.Start(h.HandleAPIGateway)
			return nil
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// buildHandler wires client, relay and handler. reg may be nil, in which case
// no metrics are recorded.
func buildHandler(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*handler.Handler, error) {
	apiKey, err := cfg.ResolveAPIKey(ctx, newParamStore)
	if err != nil {
		// A missing key is answered per request; it must not stop the service.
		logger.Error("failed to resolve Gemini API key", "param", cfg.APIKeyParam, "err", err)
		apiKey = ""
	}
	if apiKey == "" {
		logger.Warn("Gemini API key is not configured; chat replies will say so")
	}

	client, err := gemini.NewClient(
		gemini.WithBaseURL(cfg.BaseURL),
		gemini.WithModel(cfg.Model),
		gemini.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, err
	}

	opts := []usecase.RelayOption{usecase.WithLogger(logger)}
	if reg != nil {
		rec, err := metrics.NewRecorder(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, usecase.WithObserver(rec))
	}
	relay, err := usecase.NewRelay(client, apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return handler.NewHandler(relay, logger)
}

func newParamStore(ctx context.Context) (paramstore.Getter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return paramstore.New(awsssm.NewFromConfig(awsCfg))
}
