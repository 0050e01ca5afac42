package commands

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arm-trusted-services/ts-core/internal/cli/prompt"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/service/uefismm"
	"github.com/arm-trusted-services/ts-core/pkg/variable/auth"
	"github.com/arm-trusted-services/ts-core/pkg/variable/authoring"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Bootstrap the PK/KEK/db secure-boot key hierarchy",
}

var (
	keyCertPath    string
	signingKeyPath string
	skipConfirm    bool
)

var keysInstallPKCmd = &cobra.Command{
	Use:   "install-pk",
	Short: "Install the platform key (unauthenticated bootstrap)",
	Long: `Install the platform key (PK). auth.Engine accepts this write
unauthenticated only while no PK is currently installed: this is the one
moment secure boot can be bootstrapped from nothing. Every later write to
PK, KEK, or db must carry a valid signature from the existing chain.`,
	RunE: runKeysInstallPK,
}

var keysInstallKEKCmd = &cobra.Command{
	Use:   "install-kek",
	Short: "Install the key exchange key, signed by the platform key",
	RunE:  runKeysInstallKEK,
}

var keysInstallDBCmd = &cobra.Command{
	Use:   "install-db",
	Short: "Install the signature database, signed by the platform key or KEK",
	RunE:  runKeysInstallDB,
}

func init() {
	for _, c := range []*cobra.Command{keysInstallPKCmd, keysInstallKEKCmd, keysInstallDBCmd} {
		c.Flags().StringVar(&keyCertPath, "cert", "", "PEM-encoded X.509 certificate to install (required)")
		c.MarkFlagRequired("cert")
	}
	keysInstallKEKCmd.Flags().StringVar(&signingKeyPath, "signing-key", "", "PEM-encoded private key matching the installed PK (required)")
	keysInstallKEKCmd.MarkFlagRequired("signing-key")
	keysInstallDBCmd.Flags().StringVar(&signingKeyPath, "signing-key", "", "PEM-encoded private key matching the installed PK or KEK (required)")
	keysInstallDBCmd.MarkFlagRequired("signing-key")

	for _, c := range []*cobra.Command{keysInstallPKCmd, keysInstallKEKCmd, keysInstallDBCmd} {
		c.Flags().BoolVar(&skipConfirm, "yes", false, "skip the confirmation prompt")
	}

	keysCmd.AddCommand(keysInstallPKCmd, keysInstallKEKCmd, keysInstallDBCmd)
}

func loadCertPEM(path string) ([]byte, *x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read cert: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, nil, fmt.Errorf("%s: not a PEM file", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}
	return block.Bytes, cert, nil
}

func loadSigningKey(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s: not a PEM file", path)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%s: unrecognized private key encoding", path)
}

// signDigest signs digest with key, matching the padding/encoding
// x509.Certificate.CheckSignature expects for a self-signed RSA or ECDSA
// certificate's default signature algorithm (SHA256WithRSA /
// ECDSAWithSHA256, Go's default for each key type).
func signDigest(key any, digest [32]byte) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest[:])
	case *ecdsa.PrivateKey:
		return ecdsa.SignASN1(rand.Reader, k, digest[:])
	default:
		return nil, fmt.Errorf("unsupported signing key type %T", key)
	}
}

func submit(ctx context.Context, guid meta.Guid, name meta.Name, attributes uint32, payload []byte) error {
	c, stack, err := openDirectCaller(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()
	defer c.CloseSession(ctx)

	req := uefismm.EncodeSetVariableRequest(guid, name, attributes, payload)

	var mem shmem.SharedMemory
	if st := c.CreateSharedMemory(ctx, len(req)+256, &mem); st != status.Success {
		return fmt.Errorf("allocate shared memory: %s", st)
	}
	defer c.ReleaseSharedMemory(ctx, &mem)
	copy(mem.Buffer, req)

	_, svcStatus, rpcStatus := c.Call(ctx, uint16(uefismm.OpcodeSetVariable), &mem, len(req))
	if rpcStatus != status.Success {
		return fmt.Errorf("set_variable: %s", rpcStatus)
	}
	if svcStatus != 0 {
		return fmt.Errorf("set_variable rejected: service status %d", svcStatus)
	}
	return nil
}

const secureBootAttrs = meta.AttrNonVolatile | meta.AttrBootserviceAccess | meta.AttrRuntimeAccess | meta.AttrTimeBasedAuthenticatedWriteAccess

func runKeysInstallPK(cmd *cobra.Command, args []string) error {
	certDER, _, err := loadCertPEM(keyCertPath)
	if err != nil {
		return err
	}

	if !skipConfirm {
		ok, err := prompt.Confirm("Install PK unauthenticated (only possible while no PK exists)")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}

	owner := meta.Guid(uuid.New())
	payload := authoring.SignatureList(owner, certDER)
	framed := authoring.EncodeAuthenticatedPayload(authoring.Now(), []byte{0x00}, payload)

	name := meta.NameFromString("PK")
	if err := submit(context.Background(), auth.GlobalVariableGuid, name, secureBootAttrs, framed); err != nil {
		return err
	}
	fmt.Println("PK installed.")
	return nil
}

func runKeysInstallKEK(cmd *cobra.Command, args []string) error {
	return installSigned(context.Background(), auth.GlobalVariableGuid, "KEK")
}

func runKeysInstallDB(cmd *cobra.Command, args []string) error {
	return installSigned(context.Background(), auth.SecurityDatabaseGuid, "db")
}

func installSigned(ctx context.Context, guid meta.Guid, varName string) error {
	certDER, _, err := loadCertPEM(keyCertPath)
	if err != nil {
		return err
	}
	signingKey, err := loadSigningKey(signingKeyPath)
	if err != nil {
		return err
	}

	owner := meta.Guid(uuid.New())
	payload := authoring.SignatureList(owner, certDER)
	timestamp := authoring.Now()
	name := meta.NameFromString(varName)

	digest := authoring.Digest(name, guid, secureBootAttrs, timestamp, payload)
	signature, err := signDigest(signingKey, digest)
	if err != nil {
		return fmt.Errorf("sign update: %w", err)
	}

	framed := authoring.EncodeAuthenticatedPayload(timestamp, signature, payload)
	if err := submit(ctx, guid, name, secureBootAttrs, framed); err != nil {
		return err
	}
	fmt.Printf("%s installed.\n", varName)
	return nil
}
