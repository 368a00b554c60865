package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"clipforge/internal/digest"
	"clipforge/internal/services"
)

// Sign produces a keyed HMAC-SHA256 signature over the canonical
// serialization of value. The secret never appears in the ledger.
func (l *Ledger) Sign(value any, secret string) (string, error) {
	signature, err := computeSignature(value, secret)
	if err != nil {
		l.record("integrity_signature_error", OutcomeFail, map[string]any{
			"error": err.Error(),
		})
		return "", services.Wrap(services.ErrValidation, "integrity", "sign", "serialize payload", err)
	}
	l.record("integrity_signature", OutcomeNotApplicable, map[string]any{
		"signature": signature,
		"algorithm": "hmac-sha256",
	})
	return signature, nil
}

// VerifySignature recomputes the signature and compares it in constant
// time. The outcome is always recorded.
func (l *Ledger) VerifySignature(value any, signature, secret string) bool {
	computed, err := computeSignature(value, secret)
	if err != nil {
		l.record("signature_verification_error", OutcomeFail, map[string]any{
			"error": err.Error(),
		})
		return false
	}
	valid := hmac.Equal([]byte(computed), []byte(signature))
	outcome := OutcomePass
	if !valid {
		outcome = OutcomeFail
		l.logger.Warn("signature verification failed")
	}
	l.record("signature_verification", outcome, map[string]any{
		"is_valid":  valid,
		"algorithm": "hmac-sha256",
	})
	return valid
}

func computeSignature(value any, secret string) (string, error) {
	payload, err := digest.CanonicalJSON(value)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
