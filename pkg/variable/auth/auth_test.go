package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tscrypto "github.com/arm-trusted-services/ts-core/pkg/variable/crypto"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

func issueCert(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey, []byte) {
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

func buildAuthHeader(t *testing.T, ts meta.Time, signedData []byte, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, descriptorFixedSize+len(signedData)+len(payload))
	copy(buf[0:efiTimeSize], encodeTime(ts))

	dwLength := uint32(winCertHeaderSize + certTypeGuidSize + len(signedData))
	binary.LittleEndian.PutUint32(buf[efiTimeSize:], dwLength)
	binary.LittleEndian.PutUint16(buf[efiTimeSize+4:], winCertCurrentVersion)
	binary.LittleEndian.PutUint16(buf[efiTimeSize+6:], winCertTypeEFIGuid)

	copy(buf[efiTimeSize+winCertHeaderSize:], PKCS7Guid[:])
	copy(buf[descriptorFixedSize:], signedData)
	copy(buf[descriptorFixedSize+len(signedData):], payload)

	return buf
}

func buildSignatureList(certDER []byte) []byte {
	const ownerGuidSize = 16
	sigSize := ownerGuidSize + len(certDER)
	listSize := signatureListHeaderSize + sigSize

	buf := make([]byte, listSize)
	copy(buf[0:16], CertX509Guid[:])
	binary.LittleEndian.PutUint32(buf[16:], uint32(listSize))
	binary.LittleEndian.PutUint32(buf[20:], 0)
	binary.LittleEndian.PutUint32(buf[24:], uint32(sigSize))
	copy(buf[signatureListHeaderSize+ownerGuidSize:], certDER)

	return buf
}

type fakeKeyReader map[string][]byte

func keyReaderKey(guid meta.Guid, name meta.Name) string {
	return guid.String() + "/" + name.String()
}

func (f fakeKeyReader) ReadKeyVariable(_ context.Context, guid meta.Guid, name meta.Name) ([]byte, efistatus.Status) {
	v, ok := f[keyReaderKey(guid, name)]
	if !ok {
		return nil, efistatus.ErrNotFound
	}
	return v, efistatus.Success
}

func TestParseHeaderRoundTrip(t *testing.T) {
	ts := meta.Time{Year: 2024, Month: 1, Day: 1}
	payload := []byte("new-payload")
	signedData := []byte("signature-bytes")

	raw := buildAuthHeader(t, ts, signedData, payload)
	parsedTS, parsedSigned, parsedPayload, status := ParseHeader(raw)

	require.Equal(t, efistatus.Success, status)
	require.Equal(t, ts, parsedTS)
	require.Equal(t, signedData, parsedSigned)
	require.Equal(t, payload, parsedPayload)
}

func TestParseHeaderRejectsTruncated(t *testing.T) {
	_, _, _, status := ParseHeader([]byte{1, 2, 3})
	require.Equal(t, efistatus.ErrInvalidParameter, status)
}

func TestClassify(t *testing.T) {
	require.Equal(t, ClassSecureBoot, Classify(GlobalVariableGuid, meta.NameFromString("PK")))
	require.Equal(t, ClassSecureBoot, Classify(SecurityDatabaseGuid, meta.NameFromString("dbx")))
	require.Equal(t, ClassPrivate, Classify(GlobalVariableGuid, meta.NameFromString("MyAppConfig")))
}

func TestAuthenticateSecureBootDisabledWhenNoPK(t *testing.T) {
	e := NewEngine(tscrypto.NewX509Verifier())
	keys := fakeKeyReader{}

	ts := meta.Time{Year: 2024, Month: 1, Day: 1}
	raw := buildAuthHeader(t, ts, nil, []byte("kek-payload"))

	result, status := e.Authenticate(context.Background(), keys, Request{
		Guid:       GlobalVariableGuid,
		Name:       meta.NameFromString("KEK"),
		Attributes: meta.AttrNonVolatile | meta.AttrTimeBasedAuthenticatedWriteAccess,
		Data:       raw,
	})

	require.Equal(t, efistatus.Success, status)
	require.Equal(t, []byte("kek-payload"), result.Payload)
}

func TestAuthenticateSecureBootVerifiesAgainstPK(t *testing.T) {
	cert, key, der := issueCert(t, "platform-key")
	_ = cert

	e := NewEngine(tscrypto.NewX509Verifier())

	pkSigList := buildSignatureList(der)
	keys := fakeKeyReader{
		keyReaderKey(GlobalVariableGuid, meta.NameFromString("PK")): pkSigList,
	}

	ts := meta.Time{Year: 2024, Month: 1, Day: 1}
	name := meta.NameFromString("KEK")
	payload := []byte("kek-payload")
	digest := Digest(name, GlobalVariableGuid, meta.AttrNonVolatile, ts, payload)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	raw := buildAuthHeader(t, ts, sig, payload)

	result, status := e.Authenticate(context.Background(), keys, Request{
		Guid:       GlobalVariableGuid,
		Name:       name,
		Attributes: meta.AttrNonVolatile,
		Data:       raw,
	})

	require.Equal(t, efistatus.Success, status)
	require.Equal(t, payload, result.Payload)
}

func TestAuthenticateSecureBootRejectsBadSignature(t *testing.T) {
	_, _, der := issueCert(t, "platform-key")
	_, otherKey, _ := issueCert(t, "impostor")

	e := NewEngine(tscrypto.NewX509Verifier())
	pkSigList := buildSignatureList(der)
	keys := fakeKeyReader{
		keyReaderKey(GlobalVariableGuid, meta.NameFromString("PK")): pkSigList,
	}

	ts := meta.Time{Year: 2024, Month: 1, Day: 1}
	name := meta.NameFromString("KEK")
	payload := []byte("kek-payload")
	digest := Digest(name, GlobalVariableGuid, meta.AttrNonVolatile, ts, payload)
	sig, err := ecdsa.SignASN1(rand.Reader, otherKey, digest[:])
	require.NoError(t, err)

	raw := buildAuthHeader(t, ts, sig, payload)

	_, status := e.Authenticate(context.Background(), keys, Request{
		Guid:       GlobalVariableGuid,
		Name:       name,
		Attributes: meta.AttrNonVolatile,
		Data:       raw,
	})

	require.Equal(t, efistatus.ErrSecurityViolation, status)
}

func TestAuthenticatePrivateVariableFingerprintPinning(t *testing.T) {
	_, key, der := issueCert(t, "app-signer")
	e := NewEngine(tscrypto.NewX509Verifier())
	keys := fakeKeyReader{}

	name := meta.NameFromString("MyAppConfig")
	guid := meta.Guid{0xAA}
	ts1 := meta.Time{Year: 2024, Month: 1, Day: 1}
	payload1 := []byte("config-v1")

	digest1 := Digest(name, guid, meta.AttrNonVolatile, ts1, payload1)
	sig1, err := ecdsa.SignASN1(rand.Reader, key, digest1[:])
	require.NoError(t, err)
	raw1 := buildAuthHeader(t, ts1, embedSignature(der, sig1), payload1)

	result1, status := e.Authenticate(context.Background(), keys, Request{
		Guid: guid, Name: name, Attributes: meta.AttrNonVolatile, Data: raw1,
	})
	require.Equal(t, efistatus.Success, status)

	ts2 := meta.Time{Year: 2024, Month: 1, Day: 2}
	payload2 := []byte("config-v2")
	digest2 := Digest(name, guid, meta.AttrNonVolatile, ts2, payload2)
	sig2, err := ecdsa.SignASN1(rand.Reader, key, digest2[:])
	require.NoError(t, err)
	raw2 := buildAuthHeader(t, ts2, embedSignature(der, sig2), payload2)

	result2, status := e.Authenticate(context.Background(), keys, Request{
		Guid: guid, Name: name, Attributes: meta.AttrNonVolatile, Data: raw2,
		VariableExists: true, StoredTimestamp: ts1, StoredFingerprint: result1.Fingerprint,
	})
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, result1.Fingerprint, result2.Fingerprint)
}

func TestAuthenticatePrivateVariableRejectsTimestampNotStrictlyGreater(t *testing.T) {
	_, key, der := issueCert(t, "app-signer")
	e := NewEngine(tscrypto.NewX509Verifier())
	keys := fakeKeyReader{}

	name := meta.NameFromString("MyAppConfig")
	guid := meta.Guid{0xAA}
	ts := meta.Time{Year: 2024, Month: 1, Day: 1}
	payload := []byte("config")

	digest := Digest(name, guid, meta.AttrNonVolatile, ts, payload)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)
	raw := buildAuthHeader(t, ts, embedSignature(der, sig), payload)

	_, status := e.Authenticate(context.Background(), keys, Request{
		Guid: guid, Name: name, Attributes: meta.AttrNonVolatile, Data: raw,
		VariableExists: true, StoredTimestamp: ts,
	})
	require.Equal(t, efistatus.ErrSecurityViolation, status)
}

func TestAuthenticateAppendWriteDoesNotAdvanceTimestamp(t *testing.T) {
	_, key, der := issueCert(t, "app-signer")
	e := NewEngine(tscrypto.NewX509Verifier())
	keys := fakeKeyReader{}

	name := meta.NameFromString("Log")
	guid := meta.Guid{0xBB}
	storedTS := meta.Time{Year: 2024, Month: 1, Day: 1}
	sameTS := storedTS
	payload := []byte("more-log")
	attrs := meta.AttrNonVolatile | meta.AttrAppendWrite

	digest := Digest(name, guid, attrs, sameTS, payload)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)
	raw := buildAuthHeader(t, sameTS, embedSignature(der, sig), payload)

	result, status := e.Authenticate(context.Background(), keys, Request{
		Guid: guid, Name: name, Attributes: attrs, Data: raw,
		VariableExists: true, StoredTimestamp: storedTS,
	})
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, storedTS, result.Timestamp)
}
