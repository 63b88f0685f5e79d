package billing

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v83/webhook"
)

// SignatureScheme is the way a provider authenticates its deliveries.
type SignatureScheme string

const (
	SchemeHMACSHA256 SignatureScheme = "hmac-sha256"
	SchemeHMACSHA1   SignatureScheme = "hmac-sha1"
	SchemeHMACMD5    SignatureScheme = "hmac-md5"
	SchemeToken      SignatureScheme = "token"
	SchemeStripe     SignatureScheme = "stripe"
)

const tokenFingerprintPrefix = "sha256:"

// StripeTolerance is the accepted age of a Stripe signature timestamp at receipt.
const StripeTolerance = 5 * time.Minute

// SignatureSource tells the ingress where a provider puts its signature.
type SignatureSource struct {
	Header string
	Query  string
	Scheme SignatureScheme
}

// CapturedSignature is the signature as stored on the webhook log. Static
// tokens are kept as a fingerprint, never in clear.
type CapturedSignature struct {
	Scheme SignatureScheme
	Value  string
}

func (s CapturedSignature) String() string {
	if s.Value == "" {
		return ""
	}
	return string(s.Scheme) + " " + s.Value
}

// IsEmpty reports whether no signature was delivered.
func (s CapturedSignature) IsEmpty() bool {
	return strings.TrimSpace(s.Value) == ""
}

// ParseCapturedSignature reverses CapturedSignature.String.
func ParseCapturedSignature(stored string) CapturedSignature {
	scheme, value, ok := strings.Cut(strings.TrimSpace(stored), " ")
	if !ok {
		return CapturedSignature{}
	}
	return CapturedSignature{Scheme: SignatureScheme(scheme), Value: strings.TrimSpace(value)}
}

// CaptureSignature picks the first source that is present on the request.
func CaptureSignature(sources []SignatureSource, header, query func(string) string) CapturedSignature {
	for _, src := range sources {
		var v string
		if src.Header != "" {
			v = strings.TrimSpace(header(src.Header))
		}
		if v == "" && src.Query != "" {
			v = strings.TrimSpace(query(src.Query))
		}
		if v == "" {
			continue
		}
		if src.Scheme == SchemeToken {
			v = TokenFingerprint(v)
		}
		return CapturedSignature{Scheme: src.Scheme, Value: v}
	}
	return CapturedSignature{}
}

// TokenFingerprint hashes a static token so it can be stored and compared.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return tokenFingerprintPrefix + hex.EncodeToString(sum[:])
}

// Verify checks signature against payload and secret for the given scheme.
// Stripe timestamps are not checked here, see Verifier.
func Verify(scheme SignatureScheme, payload []byte, signature, secret string) bool {
	sig := strings.TrimSpace(signature)
	secret = strings.TrimSpace(secret)
	if sig == "" || secret == "" {
		return false
	}

	switch scheme {
	case SchemeHMACSHA256:
		return verifyHexHMAC(payload, sig, secret, sha256.New)
	case SchemeHMACSHA1:
		return verifyHexHMAC(payload, sig, secret, sha1.New)
	case SchemeHMACMD5:
		return verifyHexHMAC(payload, sig, secret, md5.New)
	case SchemeToken:
		if !strings.HasPrefix(sig, tokenFingerprintPrefix) {
			sig = TokenFingerprint(sig)
		}
		return subtle.ConstantTimeCompare([]byte(sig), []byte(TokenFingerprint(secret))) == 1
	case SchemeStripe:
		return webhook.ValidatePayloadIgnoringTolerance(payload, sig, secret) == nil
	default:
		return false
	}
}

func verifyHexHMAC(payload []byte, sig, secret string, hashFunc func() hash.Hash) bool {
	// Some providers prefix the digest with its algorithm, e.g. "sha256=".
	if _, after, ok := strings.Cut(sig, "="); ok {
		sig = after
	}
	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	return verifyHMAC(payload, decodedSig, []byte(secret), hashFunc)
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}

// Verifier applies the signature mode on top of Verify.
type Verifier struct {
	Mode SignatureMode
}

// Check returns an AuthenticityError when the delivery must be rejected.
// receivedAt is the ingress time, used for the Stripe replay window.
func (v Verifier) Check(provider string, payload []byte, sig CapturedSignature, secret string, receivedAt time.Time) error {
	permissive := v.Mode == ModePermissive

	if strings.TrimSpace(secret) == "" {
		if permissive {
			log.Warnf("[Webhook] %s: no secret configured, accepting unsigned delivery (permissive mode)", provider)
			return nil
		}
		return newPipelineError(KindAuthenticity, "no secret configured for %s", provider)
	}

	if sig.IsEmpty() {
		if permissive {
			log.Warnf("[Webhook] %s: signature header missing, accepted in permissive mode", provider)
			return nil
		}
		return newPipelineError(KindAuthenticity, "signature missing")
	}

	if !Verify(sig.Scheme, payload, sig.Value, secret) {
		return newPipelineError(KindAuthenticity, "invalid %s signature", sig.Scheme)
	}

	if sig.Scheme == SchemeStripe && !stripeTimestampWithin(sig.Value, receivedAt, StripeTolerance) {
		return newPipelineError(KindAuthenticity, "stripe signature timestamp outside tolerance")
	}
	return nil
}

func stripeTimestampWithin(header string, receivedAt time.Time, tolerance time.Duration) bool {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k != "t" {
			continue
		}
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false
		}
		diff := receivedAt.Sub(time.Unix(ts, 0))
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	}
	return false
}
