// Command spcheck validates a service provider's SAML AuthnRequest and
// metadata against the SPID Technical Rules and grades the TLS
// configuration of the advertised endpoints.
//
// Usage:
//
//	spcheck -metadata sp-metadata.xml -request authn-request.txt -out ./data
//
// Every flag can also be supplied through the environment (AUTHN_REQUEST,
// SP_METADATA, DATA_DIR, DEBUG, METRICS_ENABLED, SSLLABS_FORCE_NEW,
// SSLLABS_SKIP), with an optional .env file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/metrics"
	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/scancache"
	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/ssllabs"
	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/xmlsig"
	"github.com/gabrimonfa/spid-saml-check/internal/config"
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
	"github.com/gabrimonfa/spid-saml-check/internal/runner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spcheck: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := flag.String("env", ".env", "optional .env file to load")
	configFile := flag.String("config", "", "optional YAML config file")
	requestPath := flag.String("request", "", "captured AuthnRequest file (overrides AUTHN_REQUEST)")
	metadataPath := flag.String("metadata", "", "SP metadata file (overrides SP_METADATA)")
	dataDir := flag.String("out", "", "output directory for reports and certificates (overrides DATA_DIR)")
	forceNew := flag.Bool("force-new-scan", false, "submit fresh TLS scans instead of cached assessments")
	skipScan := flag.Bool("skip-scan", false, "skip TLS endpoint scanning")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	if err := config.LoadDotenv(*envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadFile(*configFile, config.Default())
	if err != nil {
		return err
	}
	cfg = config.FromEnv(cfg)

	if *requestPath != "" {
		cfg.AuthnRequestPath = *requestPath
	}
	if *metadataPath != "" {
		cfg.MetadataPath = *metadataPath
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *forceNew {
		cfg.SSLLabs.ForceNew = true
	}
	if *skipScan {
		cfg.SSLLabs.Skip = true
	}
	if *debug {
		cfg.Debug = true
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	verifierFor := newVerifierFactory(cfg, logger)

	var cache ports.GradeCache
	if cfg.SSLLabs.CachePath != "" {
		c, err := scancache.Open(cfg.SSLLabs.CachePath, cfg.SSLLabs.CacheTTL)
		if err != nil {
			logger.Warn("grade cache unavailable", zap.Error(err))
		} else {
			cache = c
			defer c.Close()
		}
	}

	analyzer := ssllabs.NewClient(cfg.SSLLabs.APIBaseURL, ssllabs.WithLogger(logger))
	rec := newMetricsRecorder(cfg)

	r := runner.New(cfg, verifierFor, analyzer, cache, rec, logger)
	ctx := context.Background()

	failed := false
	if cfg.MetadataPath != "" {
		if err := r.ValidateMetadata(ctx); err != nil {
			logger.Error("metadata validation aborted", zap.Error(err))
			failed = true
		}
	}
	if cfg.AuthnRequestPath != "" {
		if err := r.ValidateAuthnRequest(ctx); err != nil {
			logger.Error("authn request validation aborted", zap.Error(err))
			failed = true
		}
	}
	if cfg.MetadataPath == "" && cfg.AuthnRequestPath == "" {
		return fmt.Errorf("nothing to validate: set -metadata and/or -request")
	}

	if failed {
		return fmt.Errorf("validation aborted, see log")
	}
	return nil
}

// newVerifierFactory selects the external process verifier when one is
// configured, otherwise the in-process goxmldsig verifier built over
// each document's own bytes.
func newVerifierFactory(cfg config.Config, logger *zap.Logger) runner.VerifierFactory {
	if cfg.VerifierCommand != "" {
		return runner.StaticVerifier(xmlsig.NewExecVerifier(cfg.VerifierCommand, cfg.VerifierArgs, logger))
	}
	return runner.InProcessVerifier(logger)
}

// newMetricsRecorder initializes the metrics recorder based on
// configuration.
func newMetricsRecorder(cfg config.Config) ports.MetricsRecorder {
	if cfg.MetricsEnabled {
		return metrics.NewPrometheusMetricsRecorder()
	}
	return metrics.NewNoopMetricsRecorder()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
