package billing

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexHMAC(hashFunc func() hash.Hash, secret string, payload []byte) string {
	mac := hmac.New(hashFunc, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeHeader(secret string, payload []byte, ts time.Time) string {
	signed := strconv.FormatInt(ts.Unix(), 10) + "." + string(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hexHMAC(sha256.New, secret, []byte(signed)))
}

func TestVerifyHMACSchemes(t *testing.T) {
	payload := []byte(`{"event":"PURCHASE_APPROVED"}`)
	secret := "s3cret"

	tests := []struct {
		scheme   SignatureScheme
		hashFunc func() hash.Hash
	}{
		{SchemeHMACSHA256, sha256.New},
		{SchemeHMACSHA1, sha1.New},
		{SchemeHMACMD5, md5.New},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			sig := hexHMAC(tt.hashFunc, secret, payload)

			assert.True(t, Verify(tt.scheme, payload, sig, secret))
			assert.True(t, Verify(tt.scheme, payload, "sha="+sig, secret), "algorithm prefix is ignored")
			assert.False(t, Verify(tt.scheme, payload, sig, "other"))
			assert.False(t, Verify(tt.scheme, []byte(`{"event":"PURCHASE_REFUNDED"}`), sig, secret))
			assert.False(t, Verify(tt.scheme, payload, "zz-not-hex", secret))
			assert.False(t, Verify(tt.scheme, payload, "", secret))
			assert.False(t, Verify(tt.scheme, payload, sig, ""))
		})
	}
}

func TestVerifyToken(t *testing.T) {
	payload := []byte(`{}`)

	assert.True(t, Verify(SchemeToken, payload, "hottok-123", "hottok-123"))
	assert.True(t, Verify(SchemeToken, payload, TokenFingerprint("hottok-123"), "hottok-123"))
	assert.False(t, Verify(SchemeToken, payload, "hottok-124", "hottok-123"))
	assert.False(t, Verify(SchemeToken, payload, TokenFingerprint("hottok-124"), "hottok-123"))
}

func TestVerifyStripe(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	secret := "whsec_test"
	header := stripeHeader(secret, payload, time.Now())

	assert.True(t, Verify(SchemeStripe, payload, header, secret))
	assert.False(t, Verify(SchemeStripe, payload, header, "whsec_other"))
	assert.False(t, Verify(SchemeStripe, []byte(`{"id":"evt_2"}`), header, secret))
}

func TestCaptureSignature(t *testing.T) {
	headers := map[string]string{"X-Hotmart-Hottok": "  tok  "}
	query := map[string]string{"signature": "abc"}
	get := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	hotmart := hotmartAdapter{}.SignatureSources()
	sig := CaptureSignature(hotmart, get(headers), get(nil))
	assert.Equal(t, SchemeToken, sig.Scheme)
	assert.Equal(t, TokenFingerprint("tok"), sig.Value, "tokens are stored as fingerprints")

	headers["X-Hotmart-Signature"] = "deadbeef"
	sig = CaptureSignature(hotmart, get(headers), get(nil))
	assert.Equal(t, CapturedSignature{Scheme: SchemeHMACSHA256, Value: "deadbeef"}, sig)

	kiwify := kiwifyAdapter{}.SignatureSources()
	sig = CaptureSignature(kiwify, get(nil), get(query))
	assert.Equal(t, CapturedSignature{Scheme: SchemeHMACSHA1, Value: "abc"}, sig)

	sig = CaptureSignature(kiwify, get(nil), get(nil))
	assert.True(t, sig.IsEmpty())
	assert.Equal(t, "", sig.String())
}

func TestCapturedSignatureRoundTrip(t *testing.T) {
	sig := CapturedSignature{Scheme: SchemeStripe, Value: "t=1,v1=abc"}
	assert.Equal(t, sig, ParseCapturedSignature(sig.String()))
	assert.True(t, ParseCapturedSignature("").IsEmpty())
}

func TestVerifierCheck(t *testing.T) {
	payload := []byte(`{"order_id":"1"}`)
	secret := "kiwi"
	good := CapturedSignature{Scheme: SchemeHMACSHA1, Value: hexHMAC(sha1.New, secret, payload)}
	bad := CapturedSignature{Scheme: SchemeHMACSHA1, Value: hexHMAC(sha1.New, "nope", payload)}
	now := time.Now()

	strict := Verifier{Mode: ModeStrict}
	permissive := Verifier{Mode: ModePermissive}

	assert.NoError(t, strict.Check("kiwify", payload, good, secret, now))
	assert.ErrorIs(t, strict.Check("kiwify", payload, bad, secret, now), ErrAuthenticity)
	assert.ErrorIs(t, strict.Check("kiwify", payload, CapturedSignature{}, secret, now), ErrAuthenticity)
	assert.ErrorIs(t, strict.Check("kiwify", payload, good, "", now), ErrAuthenticity)

	assert.NoError(t, permissive.Check("kiwify", payload, CapturedSignature{}, secret, now))
	assert.NoError(t, permissive.Check("kiwify", payload, good, "", now))
	assert.ErrorIs(t, permissive.Check("kiwify", payload, bad, secret, now), ErrAuthenticity,
		"a present but wrong signature is rejected in every mode")
}

func TestVerifierCheckStripeTolerance(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	signedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sig := CapturedSignature{Scheme: SchemeStripe, Value: stripeHeader(secret, payload, signedAt)}
	v := Verifier{Mode: ModeStrict}

	require.NoError(t, v.Check("stripe", payload, sig, secret, signedAt.Add(4*time.Minute)))

	err := v.Check("stripe", payload, sig, secret, signedAt.Add(6*time.Minute))
	assert.ErrorIs(t, err, ErrAuthenticity)
	assert.Contains(t, err.Error(), "tolerance")
}
