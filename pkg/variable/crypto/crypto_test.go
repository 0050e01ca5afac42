package crypto

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(10 * 365 * 24 * time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert, key, der
}

func embedSignature(certDER, sig []byte) []byte {
	blob := make([]byte, 2+len(certDER)+len(sig))
	blob[0] = byte(len(certDER) >> 8)
	blob[1] = byte(len(certDER))
	copy(blob[2:], certDER)
	copy(blob[2+len(certDER):], sig)
	return blob
}

func TestVerifySignatureSelfContained(t *testing.T) {
	_, key, der := selfSignedCert(t, "test-signer")

	digest := sha256.Sum256([]byte("payload"))
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	v := NewX509Verifier()
	result := v.VerifySignature(context.Background(), nil, digest, embedSignature(der, sig))
	require.Equal(t, VerifySuccess, result)
}

func TestVerifySignatureRejectsWrongDigest(t *testing.T) {
	cert, key, der := selfSignedCert(t, "test-signer")
	_ = cert

	digest := sha256.Sum256([]byte("payload"))
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	wrongDigest := sha256.Sum256([]byte("different"))
	v := NewX509Verifier()
	result := v.VerifySignature(context.Background(), nil, wrongDigest, embedSignature(der, sig))
	require.Equal(t, VerifyFailure, result)
}

func TestFingerprintIsStableForSameIssuerAndCN(t *testing.T) {
	cert, _, der := selfSignedCert(t, "pinned-signer")
	_ = cert

	v := NewX509Verifier()
	fp1, err := v.Fingerprint(context.Background(), embedSignature(der, []byte("sig-a")))
	require.NoError(t, err)
	fp2, err := v.Fingerprint(context.Background(), embedSignature(der, []byte("sig-b")))
	require.NoError(t, err)

	require.Equal(t, fp1, fp2)
}

func TestFingerprintDiffersAcrossSigners(t *testing.T) {
	_, _, derA := selfSignedCert(t, "signer-a")
	_, _, derB := selfSignedCert(t, "signer-b")

	v := NewX509Verifier()
	fpA, err := v.Fingerprint(context.Background(), embedSignature(derA, []byte("sig")))
	require.NoError(t, err)
	fpB, err := v.Fingerprint(context.Background(), embedSignature(derB, []byte("sig")))
	require.NoError(t, err)

	require.NotEqual(t, fpA, fpB)
}
