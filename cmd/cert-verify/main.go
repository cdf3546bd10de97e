// cert-verify is a read-only check of the provisioned certificate state. It
// prints the decoded certificate and the keystore/truststore listings for
// human inspection and exits non-zero on the first failed precondition.
package main

import (
	"os"

	flag "github.com/jnovack/flag"
	"github.com/rs/zerolog/log"

	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/logging"
	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/verify"
)

type Config struct {
	CertPath   string
	Keystore   string
	Truststore string
	Password   string
	LogLevel   string
}

var config = Config{
	LogLevel: "info",
}

func main() {
	flag.StringVar(&config.CertPath, "cert", config.CertPath, "Provisioned PEM certificate path")
	flag.StringVar(&config.Keystore, "keystore", config.Keystore, "JKS keystore path")
	flag.StringVar(&config.Truststore, "truststore", config.Truststore, "JKS truststore path")
	flag.StringVar(&config.Password, "password", config.Password, "Store password for keystore and truststore")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug|info|warn|error")
	flag.Parse()

	logging.Setup(config.LogLevel)

	v := &verify.Verifier{Out: os.Stdout}
	err := v.Verify(verify.Inputs{
		CertPath:       config.CertPath,
		KeystorePath:   config.Keystore,
		TruststorePath: config.Truststore,
		Password:       config.Password,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("verification failed")
	}
	log.Info().Msg("verification complete")
}
