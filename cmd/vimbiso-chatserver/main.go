package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vimbiso/vimbiso-chatserver/internal/api"
	"github.com/vimbiso/vimbiso-chatserver/internal/components"
	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/messaging"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/sms"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
	"github.com/vimbiso/vimbiso-chatserver/internal/store"
	"github.com/vimbiso/vimbiso-chatserver/internal/util"
	"github.com/vimbiso/vimbiso-chatserver/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultSessionTTL is how long idle conversation state survives.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultAPIAddr is the default webhook listen address.
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("vimbiso-chatserver failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("vimbiso-chatserver exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDSN       string
	CredexAPIURL   string
	ClientAPIKey   string
	JWTSecret      string
	APIAddr        string
	SessionTTL     time.Duration
	LedgerPageSize int
	MockTesting    bool

	WhatsAppEnabled bool
	WhatsAppDBDSN   string
	QROutput        string
	NumericCode     bool

	SMSEnabled bool
}

// Flags holds command line flag values
type Flags struct {
	stateDSN    *string
	credexURL   *string
	apiAddr     *string
	qrOutput    *string
	numeric     *bool
	mockTesting *bool
	cfg         Config
}

// initializeLogger sets up structured logging on stdout.
func initializeLogger() {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDSN:       os.Getenv("STATE_DSN"),
		CredexAPIURL:   os.Getenv("CREDEX_API_URL"),
		ClientAPIKey:   os.Getenv("CLIENT_API_KEY"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		APIAddr:        os.Getenv("API_ADDR"),
		SessionTTL:     util.ParseDurationEnv("SESSION_TTL", DefaultSessionTTL),
		LedgerPageSize: util.ParseIntEnv("LEDGER_PAGE_SIZE", components.DefaultLedgerPageSize),
		MockTesting:    util.ParseBoolEnv("MOCK_TESTING", false),

		WhatsAppEnabled: util.ParseBoolEnv("WHATSAPP_ENABLED", true),
		WhatsAppDBDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		QROutput:        os.Getenv("WHATSAPP_QR_OUTPUT"),
		NumericCode:     util.ParseBoolEnv("WHATSAPP_NUMERIC_CODE", false),

		SMSEnabled: util.ParseBoolEnv("SMS_ENABLED", false),
	}
	if config.StateDSN == "" {
		config.StateDSN = os.Getenv("DATABASE_URL")
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	return config
}

// parseCommandLineFlags parses command line flags with the environment
// values as defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDSN:    flag.String("state-dsn", config.StateDSN, "conversation state DSN (redis://, postgres:// or sqlite path; empty for in-memory)"),
		credexURL:   flag.String("credex-url", config.CredexAPIURL, "CredEx ledger API base URL"),
		apiAddr:     flag.String("addr", config.APIAddr, "webhook listen address"),
		qrOutput:    flag.String("qr-output", config.QROutput, "file to write the WhatsApp login QR code to (default stdout)"),
		numeric:     flag.Bool("numeric-code", config.NumericCode, "use numeric WhatsApp login code instead of QR code"),
		mockTesting: flag.Bool("mock", config.MockTesting, "route CredEx calls to the sandbox ledger"),
		cfg:         config,
	}
	flag.Parse()
	return flags
}

func run(flags Flags) error {
	cfg := flags.cfg

	st, err := store.New(store.WithDSN(*flags.stateDSN), store.WithTTL(cfg.SessionTTL))
	if err != nil {
		return err
	}
	defer st.Close()

	credexClient, err := credex.NewClient(
		credex.WithBaseURL(*flags.credexURL),
		credex.WithAPIKey(cfg.ClientAPIKey),
		credex.WithMockTesting(*flags.mockTesting),
	)
	if err != nil {
		return err
	}

	registry := components.NewRegistry(components.Deps{
		API:            credexClient,
		LedgerPageSize: cfg.LedgerPageSize,
	})
	activator := flow.NewActivator(registry)

	resolver, waClient := buildMessagingResolver(flags)
	processor := flow.NewProcessor(st, activator,
		flow.WithMessagingResolver(resolver),
		flow.WithStateOptions(
			state.WithTTL(cfg.SessionTTL),
			state.WithJWTSecret([]byte(cfg.JWTSecret)),
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inbound WhatsApp messages arrive over the whatsmeow socket rather
	// than a webhook; direct replies go back over the same connection.
	if waClient != nil {
		defer waClient.Disconnect()
		waClient.OnIncomingText(func(from, id, body string) {
			reply := processor.ProcessMessage(ctx, &flow.Inbound{
				ChannelType: models.ChannelTypeWhatsApp,
				ChannelID:   from,
				Message:     &models.Message{ID: id, Type: models.MessageTypeText, Body: body},
			})
			if reply != "" {
				if err := waClient.SendMessage(ctx, from, reply); err != nil {
					slog.Error("Failed to send direct reply", "error", err, "to", from)
				}
			}
		})
	}

	server := api.NewServer(processor, st, api.WithAddr(*flags.apiAddr))
	slog.Info("Bootstrapping vimbiso-chatserver",
		"addr", *flags.apiAddr,
		"store_dsn_set", *flags.stateDSN != "",
		"whatsapp", waClient != nil,
		"mock", *flags.mockTesting)
	return server.Run(ctx)
}

// buildMessagingResolver wires the per-channel outbound transports. A
// channel without a configured transport falls back to a dropping sender so
// webhook-driven development still works end to end.
func buildMessagingResolver(flags Flags) (flow.MessagingResolver, *whatsapp.Client) {
	cfg := flags.cfg
	services := map[models.ChannelType]messaging.Service{}

	var waClient *whatsapp.Client
	if cfg.WhatsAppEnabled {
		var waOpts []whatsapp.Option
		if cfg.WhatsAppDBDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(cfg.WhatsAppDBDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			slog.Error("WhatsApp client unavailable, continuing without it", "error", err)
		} else {
			waClient = client
			services[models.ChannelTypeWhatsApp] = messaging.NewSenderService(client, models.ChannelTypeWhatsApp)
		}
	}

	if cfg.SMSEnabled {
		smsClient, err := sms.NewClient()
		if err != nil {
			slog.Error("Twilio SMS client unavailable, continuing without it", "error", err)
		} else {
			services[models.ChannelTypeSMS] = messaging.NewSenderService(smsClient, models.ChannelTypeSMS)
		}
	}

	resolver := func(ct models.ChannelType) messaging.Service {
		if svc, ok := services[ct]; ok {
			return svc
		}
		slog.Warn("No transport configured for channel type, dropping outbound messages", "channel", ct)
		return messaging.NewSenderService(droppingSender{}, ct)
	}
	return resolver, waClient
}

// droppingSender logs outbound messages instead of delivering them. Used
// when a channel has no configured transport (local development).
type droppingSender struct{}

func (droppingSender) SendMessage(ctx context.Context, to string, body string) error {
	slog.Info("Dropping outbound message (no transport)", "to", to, "body", body)
	return nil
}
