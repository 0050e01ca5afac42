// Package crypto defines the crypto-backend collaborator contract the
// authentication engine consumes to verify PKCS#7 signatures and to derive
// the fingerprint pinned against private-authenticated variables. The
// reference implementation is a stdlib crypto/x509-based verifier, not a
// full PKCS#7 parser (a real deployment delegates to a crypto service
// partition that owns the SignedData ContentInfo parsing); it expects the signature to already be split into a
// DER certificate and a raw signature blob rather than accepting an
// embedded PKCS#7 SignedData blob wholesale.
package crypto

import (
	"context"
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
)

// VerifyResult mirrors verify_pkcs7_signature's return convention on the
// crypto service side: zero means the signature checked out, non-zero is an
// unspecified failure code the caller only tests for equality with zero.
type VerifyResult int

const (
	VerifySuccess VerifyResult = 0
	VerifyFailure VerifyResult = 1
)

// Backend is the narrow collaborator the authentication engine delegates
// signature verification and fingerprinting to; a deployment backs it
// with its crypto service partition.
type Backend interface {
	// VerifySignature checks that signature is a valid signature over
	// digest by the key in cert, matching verify_pkcs7_signature's
	// contract when passed an already-parsed certificate (the "external
	// cert" case for secure-boot variables). When cert is nil, the
	// embedded signer certificate found inside signature is used instead
	// (the "self-contained" case for private-authenticated variables).
	VerifySignature(ctx context.Context, cert *x509.Certificate, digest [32]byte, signature []byte) VerifyResult

	// Fingerprint derives the pinned identity of a private-authenticated
	// variable's signer from the raw PKCS#7 signature blob, matching
	// get_uefi_priv_auth_var_fingerprint_handler. The result is always
	// exactly 32 bytes; an implementation producing a shorter digest must
	// zero-pad rather than fail, since the fingerprint field is a fixed
	// 32-byte array with no length prefix of its own.
	Fingerprint(ctx context.Context, signature []byte) ([32]byte, error)
}

// X509Verifier is a reference Backend built on stdlib crypto/x509. It
// expects signature to already carry its embedded signer certificate in
// DER form ahead of the raw signature bytes, using a minimal
// length-prefixed framing of its own rather than the real PKCS#7
// SignedData ASN.1 structure, which belongs to the crypto service this
// verifier stands in for.
type X509Verifier struct{}

// NewX509Verifier constructs the reference Backend.
func NewX509Verifier() *X509Verifier {
	return &X509Verifier{}
}

// splitEmbeddedSignature parses the framing X509Verifier expects inside a
// "PKCS#7" blob: a 2-byte big-endian certificate length, the DER
// certificate, then the raw RSA/ECDSA signature bytes over the digest.
func splitEmbeddedSignature(blob []byte) (certDER []byte, sig []byte, ok bool) {
	if len(blob) < 2 {
		return nil, nil, false
	}
	certLen := int(blob[0])<<8 | int(blob[1])
	if len(blob) < 2+certLen {
		return nil, nil, false
	}
	return blob[2 : 2+certLen], blob[2+certLen:], true
}

func (v *X509Verifier) VerifySignature(_ context.Context, cert *x509.Certificate, digest [32]byte, signature []byte) VerifyResult {
	signer := cert
	sig := signature

	if signer == nil {
		// Self-contained case (private-authenticated variables): the
		// signer certificate travels embedded in signature itself.
		certDER, rawSig, ok := splitEmbeddedSignature(signature)
		if !ok {
			return VerifyFailure
		}
		parsed, err := x509.ParseCertificate(certDER)
		if err != nil {
			return VerifyFailure
		}
		signer = parsed
		sig = rawSig
	}

	verified := false
	switch pub := signer.PublicKey.(type) {
	case *ecdsa.PublicKey:
		verified = ecdsa.VerifyASN1(pub, digest[:], sig)
	case *rsa.PublicKey:
		verified = rsa.VerifyPKCS1v15(pub, stdcrypto.SHA256, digest[:], sig) == nil
	}
	if !verified {
		return VerifyFailure
	}

	return VerifySuccess
}

func (v *X509Verifier) Fingerprint(_ context.Context, signature []byte) ([32]byte, error) {
	var fp [32]byte

	certDER, _, ok := splitEmbeddedSignature(signature)
	if !ok {
		return fp, errNotASignature
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fp, err
	}

	// Fold the signer's common name and the signer certificate's raw
	// issuer name (its DER-encoded issuer field) into the fingerprint,
	// pinning (signer CN, issuer identity) rather than the raw certificate
	// bytes, so that a reissued leaf certificate under the same issuer
	// does not itself invalidate previously authenticated updates. The
	// blob carries only the signer certificate, so no issuer
	// certificate's tbsCertificate is hashed.
	h := sha256.New()
	h.Write([]byte(cert.Subject.CommonName))
	h.Write(cert.RawIssuer)
	sum := h.Sum(nil)
	copy(fp[:], sum)

	return fp, nil
}

var errNotASignature = &backendError{"crypto: malformed embedded signature blob"}

type backendError struct{ msg string }

func (e *backendError) Error() string { return e.msg }
