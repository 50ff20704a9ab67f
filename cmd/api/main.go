package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mitumba-market/api/internal/di"
	"github.com/mitumba-market/api/internal/handlers"
	"github.com/mitumba-market/api/internal/payments"
	"github.com/mitumba-market/api/internal/platform/auth"
	"github.com/mitumba-market/api/internal/platform/config"
	"github.com/mitumba-market/api/internal/platform/events"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/platform/observability"
	"github.com/mitumba-market/api/internal/platform/secrets"
	firestoreRepo "github.com/mitumba-market/api/internal/repositories/firestore"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(pfirestore.ProviderConfig(cfg.Firestore))
	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise firestore repositories", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	orderEventsTopic := pubsubClient.Topic(cfg.PubSub.OrderEventsTopic)
	defer orderEventsTopic.Stop()

	publisher, err := events.NewPubSubOrderEventPublisher(orderEventsTopic)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithOrderEventPublisher(publisher),
		di.WithLogger(logger.Named("services")),
	}

	mpesaProvider, err := newMpesaProvider(cfg.Mpesa)
	if err != nil {
		logger.Fatal("failed to initialise mpesa provider", zap.Error(err))
	}
	if mpesaProvider != nil {
		containerOpts = append(containerOpts, di.WithPaymentProvider(mpesaProvider))
	} else {
		logger.Warn("mpesa credentials not configured; payment routes disabled")
	}

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to assemble services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Orders)
	cartHandlers := handlers.NewCartHandlers(authenticator, container.Services.Cart)
	notificationHandlers := handlers.NewNotificationHandlers(authenticator, container.Services.Notifications)
	paymentHandlers := handlers.NewPaymentHandlers(authenticator, container.Services.Payments)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthStorage(registry.Health()),
		handlers.WithHealthVersion(buildVersion(envValues)),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithNotificationRoutes(notificationHandlers.Routes),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithWebhookRoutes(paymentHandlers.WebhookRoutes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("mitumba market api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newMpesaProvider builds the Daraja gateway when credentials are present.
// A deployment without M-Pesa credentials still serves order fulfilment;
// only the payment routes are withheld.
func newMpesaProvider(cfg config.MpesaConfig) (payments.Provider, error) {
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	provider, err := payments.NewMpesaProvider(payments.MpesaConfig{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		ShortCode:      cfg.ShortCode,
		Passkey:        cfg.Passkey,
		CallbackURL:    cfg.CallbackURL,
	}, payments.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func buildVersion(env map[string]string) string {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	return version
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := secretProjectMapFromEnv(env)
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields that must resolve whenever the
// operator points them at the secret store rather than a literal value.
func requiredSecretNames(env map[string]string) []string {
	refs := map[string]string{
		"API_MPESA_CONSUMER_KEY":    "Mpesa.ConsumerKey",
		"API_MPESA_CONSUMER_SECRET": "Mpesa.ConsumerSecret",
		"API_MPESA_PASSKEY":         "Mpesa.Passkey",
	}
	required := make([]string, 0, len(refs))
	for key, name := range refs {
		value := strings.TrimSpace(env[key])
		if strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://") {
			required = append(required, name)
		}
	}
	return required
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	raw = strings.TrimSpace(raw)
	projects := make(map[string]string)
	if raw == "" {
		return projects
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return projects
}
