// cert-provisioner waits for the TLS terminator to obtain a certificate for
// a hostname, installs the pair at the destination, and derives the Java
// keystore/truststore artifacts the stack's services consume.
package main

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	flag "github.com/jnovack/flag"
	"github.com/rs/zerolog/log"

	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/certstore"
	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/javastore"
	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/logging"
	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/provision"
	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/signals"
	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/waiter"
)

type Config struct {
	Hostname          string
	CertDir           string
	DestDir           string
	Passphrase        string
	Timeout           time.Duration
	Interval          time.Duration
	KeystoreP12       string
	KeystoreJKS       string
	Truststore        string
	CARootURL         string
	CAIntermediateURL string
	LogLevel          string
}

var config = Config{
	Timeout:           300 * time.Second,
	Interval:          5 * time.Second,
	CARootURL:         javastore.DefaultCAs[0].URL,
	CAIntermediateURL: javastore.DefaultCAs[1].URL,
	LogLevel:          "info",
}

func main() {
	flag.StringVar(&config.Hostname, "hostname", config.Hostname, "Hostname the certificate was obtained for")
	flag.StringVar(&config.CertDir, "cert-dir", config.CertDir, "Directory tree the TLS terminator writes certificates to")
	flag.StringVar(&config.DestDir, "dest", config.DestDir, "Destination directory for server.crt/server.key")
	flag.StringVar(&config.Passphrase, "passphrase", config.Passphrase, "Shared passphrase for keystore and truststore")
	flag.DurationVar(&config.Timeout, "timeout", config.Timeout, "How long to wait for the certificate to appear")
	flag.DurationVar(&config.Interval, "interval", config.Interval, "Poll interval while waiting")
	flag.StringVar(&config.KeystoreP12, "keystore-p12", config.KeystoreP12, "PKCS12 bundle path (default <dest>/keystore.p12)")
	flag.StringVar(&config.KeystoreJKS, "keystore-jks", config.KeystoreJKS, "JKS keystore path (default <dest>/keystore.jks)")
	flag.StringVar(&config.Truststore, "truststore", config.Truststore, "JKS truststore path (default <dest>/truststore.jks)")
	flag.StringVar(&config.CARootURL, "ca-root-url", config.CARootURL, "URL of the root CA certificate")
	flag.StringVar(&config.CAIntermediateURL, "ca-intermediate-url", config.CAIntermediateURL, "URL of the intermediate CA certificate")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug|info|warn|error")
	flag.Parse()

	logging.Setup(config.LogLevel)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"hostname", config.Hostname},
		{"cert-dir", config.CertDir},
		{"dest", config.DestDir},
		{"passphrase", config.Passphrase},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		log.Fatal().Str("missing", strings.Join(missing, ", ")).Msg("required configuration missing")
	}

	if config.KeystoreP12 == "" {
		config.KeystoreP12 = filepath.Join(config.DestDir, "keystore.p12")
	}
	if config.KeystoreJKS == "" {
		config.KeystoreJKS = filepath.Join(config.DestDir, "keystore.jks")
	}
	if config.Truststore == "" {
		config.Truststore = filepath.Join(config.DestDir, "truststore.jks")
	}

	runID := uuid.New()
	logger := log.With().Str("run", runID.String()).Str("hostname", config.Hostname).Logger()
	ctx := signals.Setup()

	logger.Info().
		Str("certDir", config.CertDir).
		Str("dest", config.DestDir).
		Dur("timeout", config.Timeout).
		Dur("interval", config.Interval).
		Msg("waiting for certificate from TLS terminator")

	w := &waiter.Waiter{Policy: waiter.Policy{Timeout: config.Timeout, Interval: config.Interval}}
	pair, err := w.Wait(ctx, func() (certstore.Pair, *certstore.Report, error) {
		return certstore.Scan(config.CertDir, config.Hostname)
	})
	if err != nil {
		var te *waiter.TimeoutError
		if errors.As(err, &te) {
			logger.Fatal().
				Dur("elapsed", te.Elapsed).
				Int("attempts", te.Attempts).
				Str("lastSearch", te.LastReport.Summary()).
				Msg("certificate never appeared")
		}
		logger.Fatal().Err(err).Msg("certificate acquisition failed")
	}
	logger.Info().Str("cert", pair.CertPath).Str("key", pair.KeyPath).Msg("certificate found")

	provisioned, err := provision.Provision(pair, config.DestDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("provisioning failed")
	}
	logger.Info().Str("cert", provisioned.CertPath).Str("key", provisioned.KeyPath).Msg("certificate provisioned")

	installed := certstore.Pair{CertPath: provisioned.CertPath, KeyPath: provisioned.KeyPath}
	if err := javastore.WriteKeyStore(installed, config.KeystoreP12, config.KeystoreJKS, config.Passphrase); err != nil {
		logger.Fatal().Err(err).Msg("keystore conversion failed")
	}
	logger.Info().Str("p12", config.KeystoreP12).Str("jks", config.KeystoreJKS).Msg("keystore written")

	builder := &javastore.TrustStoreBuilder{}
	cas := []javastore.CA{
		{Alias: "root", URL: config.CARootURL},
		{Alias: "intermediate", URL: config.CAIntermediateURL},
	}
	if err := builder.Build(cas, config.Truststore, config.Passphrase); err != nil {
		logger.Fatal().Err(err).Msg("truststore build failed")
	}
	logger.Info().Str("truststore", config.Truststore).Msg("provisioning complete")
}
