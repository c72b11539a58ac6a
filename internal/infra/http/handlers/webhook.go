package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxWebhookBody = 1 << 16

var (
	errMissingSignature = errors.New("missing signature header")
	errBadSignature     = errors.New("signature mismatch")
	errStaleSignature   = errors.New("signature timestamp outside tolerance")
)

// readWebhookBody reads the raw body that signatures are computed over.
// Bodies over maxWebhookBody are answered with 413.
func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorResponse(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "webhook body exceeds limit")
			return nil, false
		}
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_BODY", "could not read body")
		return nil, false
	}
	return payload, true
}

// verifyProviderSignature checks the svix-style headers the mail provider signs callbacks
// with: base64 HMAC-SHA256 of "<id>.<timestamp>.<payload>" keyed by the decoded
// "whsec_" secret, listed as space separated "v1,<sig>" entries.
func verifyProviderSignature(payload []byte, id, timestamp, header, secret string, tolerance time.Duration, now time.Time) error {
	if id == "" || timestamp == "" || header == "" {
		return errMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errMissingSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return errStaleSignature
		}
	}

	expected := signProviderPayload(payload, id, timestamp, secret)
	for _, entry := range strings.Fields(header) {
		version, value, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return errBadSignature
}

func signProviderPayload(payload []byte, id, timestamp, secret string) []byte {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		key = []byte(secret)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
