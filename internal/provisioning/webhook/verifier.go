package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/timottowitz/obelisk-backend/pkg/errors"
)

// Signature headers sent by the identity provider on every lifecycle event.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// secretPrefix is stripped from the configured signing secret before
// base64-decoding the key material.
const secretPrefix = "whsec_"

// DefaultTolerance bounds how far a webhook timestamp may drift from the
// server clock before the delivery is rejected as a replay.
const DefaultTolerance = 5 * time.Minute

// Verifier authenticates inbound lifecycle webhooks. The provider signs
// "{id}.{timestamp}.{body}" with HMAC-SHA256 and sends one or more
// base64 signatures as space-separated "v1,<sig>" entries.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier builds a verifier from the configured signing secret.
// An empty or undecodable secret is a fatal misconfiguration: the
// constructor fails closed rather than producing a verifier that would
// accept anything.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.Configuration("webhook signing secret is not configured")
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return nil, errors.Configuration("webhook signing secret is not valid base64")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		key:       key,
		tolerance: tolerance,
		now:       time.Now,
	}, nil
}

// Verify checks the signature headers against the raw request body.
// It returns an InvalidSignature error before any payload field is read:
// callers must not parse the body unless Verify succeeds.
func (v *Verifier) Verify(headers http.Header, body []byte) error {
	msgID := headers.Get(HeaderID)
	msgTimestamp := headers.Get(HeaderTimestamp)
	msgSignature := headers.Get(HeaderSignature)
	if msgID == "" || msgTimestamp == "" || msgSignature == "" {
		return errors.InvalidSignature("missing webhook signature headers")
	}

	ts, err := strconv.ParseInt(msgTimestamp, 10, 64)
	if err != nil {
		return errors.InvalidSignature("malformed webhook timestamp")
	}
	drift := v.now().Sub(time.Unix(ts, 0))
	if drift > v.tolerance || drift < -v.tolerance {
		return errors.InvalidSignature("webhook timestamp outside tolerance")
	}

	expected := v.sign(msgID, msgTimestamp, body)

	// Multiple signatures may be present during secret rotation.
	for _, entry := range strings.Fields(msgSignature) {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		provided, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(provided, expected) {
			return nil
		}
	}

	return errors.InvalidSignature("webhook signature mismatch")
}

func (v *Verifier) sign(msgID, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign produces the provider's "v1,<base64>" signature entry for the given
// message. Exported for test fixtures that need to forge valid deliveries.
func (v *Verifier) Sign(msgID, timestamp string, body []byte) string {
	return "v1," + base64.StdEncoding.EncodeToString(v.sign(msgID, timestamp, body))
}
