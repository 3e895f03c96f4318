// cmd/loan-officer/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loan-origination/internal/backend"
	"loan-origination/internal/common/auth"
	"loan-origination/internal/common/config"
	"loan-origination/internal/common/errors"
	commonhttp "loan-origination/internal/common/http"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/observability"
	"loan-origination/internal/models"
	"loan-origination/internal/submission"
	"loan-origination/internal/upload"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "enums":
		err = runEnums(ctx, os.Args[2:])
	case "submit":
		err = runSubmit(ctx, os.Args[2:])
	case "upload":
		err = runUpload(ctx, os.Args[2:])
	case "help", "-h", "--help":
		help()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		help()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.IsRetryable(err) {
			fmt.Fprintln(os.Stderr, "The request may succeed if tried again.")
		}
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: loan-officer <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  enums    Log in and print the reference vocabularies")
	fmt.Println("  submit   Validate and save a draft, one or more steps at a time")
	fmt.Println("  upload   Upload a selfie or a supporting document")
	fmt.Println()
	fmt.Println("Run 'loan-officer <command> -h' for command options.")
}

// app holds the wired dependencies for one command invocation.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	obs    *observability.Observability
	auth   *auth.Client
	api    *commonhttp.Client

	metricsServer *http.Server
}

func newApp(configPath string) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog)

	authClient := auth.NewClient(cfg.Auth, log)
	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    observability.New(cfg.App.Name),
		auth:   authClient,
		api:    commonhttp.NewClient(cfg.Backend.BaseURL, config.GetDuration(cfg.Backend.Timeout), authClient),
	}
	a.startMetricsServer()
	return a, nil
}

func (a *app) startMetricsServer() {
	if a.cfg.Metrics.ListenAddress == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	a.metricsServer = &http.Server{
		Addr:              a.cfg.Metrics.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.zapLog.Info("Metrics server listening", zap.String("address", a.cfg.Metrics.ListenAddress))
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

func (a *app) close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
	}
	a.obs.Shutdown()
	_ = a.zapLog.Sync()
}

func (a *app) credentials() models.Credentials {
	return models.Credentials{
		Username: a.cfg.Auth.Username,
		Password: a.cfg.Auth.Password,
	}
}

func (a *app) controller() *submission.Controller {
	ep := a.cfg.Backend.Endpoints
	return submission.NewController(
		a.auth,
		backend.NewApplicationsRepository(a.api, ep.Applications, a.log),
		backend.NewEnumsRepository(a.api, ep.IDCardTypes, ep.ProductTypes, a.log),
		submission.NewValidator(a.cfg.Validation.PhoneRegion),
		a.log,
		a.obs,
	)
}

func (a *app) pipeline() *upload.Pipeline {
	// Uploads are bounded by upload.timeout, not backend.timeout.
	client := commonhttp.NewClient(a.cfg.Backend.BaseURL, config.GetDuration(a.cfg.Upload.Timeout), a.auth)
	return upload.NewPipeline(
		client,
		upload.NewValidator(upload.LimitsFromConfig(a.cfg.Upload)),
		upload.Endpoints{
			Selfie: a.cfg.Backend.Endpoints.SelfieUpload,
			File:   a.cfg.Backend.Endpoints.FileUpload,
		},
		a.log.WithFields(map[string]interface{}{"component": "upload-pipeline"}),
	)
}

func runEnums(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enums", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: configs/config.yaml)")
	fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctrl := a.controller()
	if err := ctrl.Initialize(ctx, a.credentials()); err != nil {
		return err
	}
	return printJSON(ctrl.Snapshot().References)
}

func runSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: configs/config.yaml)")
	draftPath := fs.String("draft", "", "Path to the draft JSON file")
	steps := fs.String("steps", string(submission.StepCustomerInformation), "Comma-separated steps to submit in order")
	applicationID := fs.String("id", "", "Existing application id to update instead of creating")
	fs.Parse(args)

	if *draftPath == "" {
		fmt.Println("Error: draft is required for submit.")
		fs.Usage()
		os.Exit(1)
	}

	draft, err := readDraft(*draftPath)
	if err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctrl := a.controller()
	if err := ctrl.Initialize(ctx, a.credentials()); err != nil {
		return err
	}
	if *applicationID != "" {
		if err := ctrl.Edit(*applicationID); err != nil {
			return err
		}
	}

	var results []*submission.SubmitResult
	for _, step := range strings.Split(*steps, ",") {
		result, err := ctrl.SubmitStep(ctx, submission.Step(strings.TrimSpace(step)), draft)
		if err != nil {
			return err
		}
		results = append(results, result)
	}
	return printJSON(results)
}

func runUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: configs/config.yaml)")
	kind := fs.String("kind", string(models.UploadKindDocument), "Upload kind (selfie, document)")
	path := fs.String("file", "", "Path to the file to upload")
	applicationID := fs.String("application-id", "", "Application id")
	selfieType := fs.String("selfie-type", "", "Selfie type (selfie only)")
	customerIDNumber := fs.String("customer-id-number", "", "Customer id number (selfie only)")
	customerName := fs.String("customer-name", "", "Customer name (selfie only)")
	latitude := fs.Float64("lat", 0, "Capture latitude (selfie only, requires -lon)")
	longitude := fs.Float64("lon", 0, "Capture longitude (selfie only, requires -lat)")
	notes := fs.String("notes", "", "Notes (selfie only)")
	folderID := fs.String("folder-id", "", "Destination folder id (document only)")
	documentType := fs.String("document-type", "", "Document type (document only)")
	fs.Parse(args)

	if *path == "" {
		fmt.Println("Error: file is required for upload.")
		fs.Usage()
		os.Exit(1)
	}

	set := setFlags(fs)
	optional := func(name string, value *string) *string {
		if !set[name] {
			return nil
		}
		return models.StringPtr(*value)
	}

	target := models.UploadTarget{Path: *path, Kind: models.UploadKind(*kind)}
	switch target.Kind {
	case models.UploadKindSelfie:
		if *applicationID == "" || *selfieType == "" {
			fmt.Println("Error: application-id and selfie-type are required for a selfie.")
			fs.Usage()
			os.Exit(1)
		}
		meta := &models.SelfieMetadata{
			ApplicationID:    *applicationID,
			SelfieType:       *selfieType,
			CustomerIDNumber: optional("customer-id-number", customerIDNumber),
			CustomerName:     optional("customer-name", customerName),
			Notes:            optional("notes", notes),
		}
		if set["lat"] && set["lon"] {
			meta.Location = &models.GeoLocation{Latitude: *latitude, Longitude: *longitude}
		}
		target.Selfie = meta
	case models.UploadKindDocument:
		target.Document = &models.DocumentMetadata{
			ApplicationID: optional("application-id", applicationID),
			FolderID:      optional("folder-id", folderID),
			DocumentType:  optional("document-type", documentType),
		}
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.auth.Login(ctx, a.cfg.Auth.Username, a.cfg.Auth.Password); err != nil {
		return err
	}

	last := -1
	resp, err := a.pipeline().Upload(ctx, target, func(sent, total int64) {
		if total <= 0 {
			return
		}
		if pct := int(sent * 100 / total); pct != last {
			last = pct
			fmt.Fprintf(os.Stderr, "\rUploading %s: %3d%%", *path, pct)
		}
	})
	if last >= 0 {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	if resp.Data != nil {
		return printJSON(resp.Data)
	}
	return printJSON(map[string]interface{}{"statusCode": resp.StatusCode})
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func readDraft(path string) (models.ApplicationDraft, error) {
	var draft models.ApplicationDraft
	data, err := os.ReadFile(path)
	if err != nil {
		return draft, fmt.Errorf("failed to read draft: %w", err)
	}
	if err := json.Unmarshal(data, &draft); err != nil {
		return draft, fmt.Errorf("failed to parse draft %s: %w", path, err)
	}
	return draft, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
