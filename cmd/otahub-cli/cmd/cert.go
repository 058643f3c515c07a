package cmd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// newCertCommand implements spec.md §6's cert {ca|server|device}
// subcommand family: a minimal, self-contained mutual-TLS bootstrap for
// the MQTT broker and its devices, built on crypto/x509 + crypto/ecdsa
// alone. No third-party PKI library is pulled in for this: the scope is
// "generate a CA and a couple of signed leaves", not certificate
// lifecycle management.
func newCertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Generate self-signed mutual-TLS material for the MQTT broker and devices",
	}
	cmd.AddCommand(newCertCACommand())
	cmd.AddCommand(newCertServerCommand())
	cmd.AddCommand(newCertDeviceCommand())
	return cmd
}

func newCertCACommand() *cobra.Command {
	var outDir string
	var days int

	cmd := &cobra.Command{
		Use:   "ca",
		Short: "Generate a self-signed CA certificate and key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			if err != nil {
				return fmt.Errorf("generate ca key: %w", err)
			}

			serial, err := randomSerial()
			if err != nil {
				return err
			}

			tmpl := &x509.Certificate{
				SerialNumber:          serial,
				Subject:               pkix.Name{CommonName: "otahub-ca"},
				NotBefore:             time.Now().Add(-time.Hour),
				NotAfter:              time.Now().AddDate(0, 0, days),
				KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
				BasicConstraintsValid: true,
				IsCA:                  true,
			}

			der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
			if err != nil {
				return fmt.Errorf("create ca certificate: %w", err)
			}

			if err := writeKeyPair(outDir, "ca", der, key); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", filepath.Join(outDir, "ca-cert.pem"))
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "./certs", "Directory to write ca-cert.pem and ca-key.pem to")
	cmd.Flags().IntVar(&days, "days", 3650, "Validity period in days")
	return cmd
}

func newCertServerCommand() *cobra.Command {
	return newCertLeafCommand("server", "Generate a server leaf certificate signed by a CA", func(cn string) []string {
		return []string{cn}
	})
}

func newCertDeviceCommand() *cobra.Command {
	return newCertLeafCommand("device", "Generate a device leaf certificate signed by a CA", func(cn string) []string {
		return nil
	})
}

// newCertLeafCommand builds the shared server/device leaf-cert command:
// both sign a new key with an existing CA, differing only in whether
// the common name is also added as a DNS SAN (servers are dialed by
// hostname; devices are identified by client-cert CN alone).
func newCertLeafCommand(name, short string, dnsNames func(cn string) []string) *cobra.Command {
	var outDir, caCertPath, caKeyPath, commonName string
	var days int

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if commonName == "" {
				return fmt.Errorf("--common-name is required")
			}

			caCert, caKey, err := loadCA(caCertPath, caKeyPath)
			if err != nil {
				return err
			}

			key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			if err != nil {
				return fmt.Errorf("generate %s key: %w", name, err)
			}

			serial, err := randomSerial()
			if err != nil {
				return err
			}

			tmpl := &x509.Certificate{
				SerialNumber: serial,
				Subject:      pkix.Name{CommonName: commonName},
				NotBefore:    time.Now().Add(-time.Hour),
				NotAfter:     time.Now().AddDate(0, 0, days),
				KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
				ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
				DNSNames:     dnsNames(commonName),
			}
			if ip := net.ParseIP(commonName); ip != nil {
				tmpl.IPAddresses = []net.IP{ip}
			}

			der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
			if err != nil {
				return fmt.Errorf("create %s certificate: %w", name, err)
			}

			if err := writeKeyPair(outDir, name, der, key); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", filepath.Join(outDir, name+"-cert.pem"))
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "./certs", "Directory to write the cert and key to")
	cmd.Flags().StringVar(&caCertPath, "ca-cert", "./certs/ca-cert.pem", "Path to the signing CA certificate")
	cmd.Flags().StringVar(&caKeyPath, "ca-key", "./certs/ca-key.pem", "Path to the signing CA private key")
	cmd.Flags().StringVar(&commonName, "common-name", "", "Certificate common name, e.g. a device id or broker hostname (required)")
	cmd.Flags().IntVar(&days, "days", 365, "Validity period in days")
	return cmd
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generate certificate serial: %w", err)
	}
	return serial, nil
}

func loadCA(certPath, keyPath string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read ca certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, nil, fmt.Errorf("no PEM block found in %s", certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse ca certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read ca key: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("no PEM block found in %s", keyPath)
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse ca key: %w", err)
	}

	return cert, key, nil
}

func writeKeyPair(dir, name string, der []byte, key *ecdsa.PrivateKey) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	certOut, err := os.Create(filepath.Join(dir, name+"-cert.pem"))
	if err != nil {
		return fmt.Errorf("create %s-cert.pem: %w", name, err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return fmt.Errorf("write %s-cert.pem: %w", name, err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal %s key: %w", name, err)
	}
	keyOut, err := os.OpenFile(filepath.Join(dir, name+"-key.pem"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s-key.pem: %w", name, err)
	}
	defer keyOut.Close()
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		return fmt.Errorf("write %s-key.pem: %w", name, err)
	}

	return nil
}
