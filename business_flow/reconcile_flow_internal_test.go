package businessflow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voximate/voximate/app/dto"
)

func signedHeader(secret string, body []byte, at time.Time) string {
	timestamp := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v0=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"type":"post_call_transcription"}`)
	now := time.Now()

	t.Run("ValidSignature", func(t *testing.T) {
		err := VerifyWebhookSignature(secret, signedHeader(secret, body, now), body, now)
		require.NoError(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		err := VerifyWebhookSignature(secret, signedHeader("other", body, now), body, now)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("TamperedBody", func(t *testing.T) {
		header := signedHeader(secret, body, now)
		err := VerifyWebhookSignature(secret, header, []byte(`{"type":"tampered"}`), now)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("StaleTimestamp", func(t *testing.T) {
		stale := now.Add(-31 * time.Minute)
		err := VerifyWebhookSignature(secret, signedHeader(secret, body, stale), body, now)
		assert.ErrorIs(t, err, ErrWebhookTimestampStale)
	})

	t.Run("WithinTolerance", func(t *testing.T) {
		recent := now.Add(-29 * time.Minute)
		err := VerifyWebhookSignature(secret, signedHeader(secret, body, recent), body, now)
		require.NoError(t, err)
	})

	t.Run("MalformedHeaders", func(t *testing.T) {
		for _, header := range []string{
			"",
			"v0=deadbeef",
			"t=1700000000",
			"t=notanumber,v0=deadbeef",
		} {
			err := VerifyWebhookSignature(secret, header, body, now)
			assert.ErrorIs(t, err, ErrInvalidWebhookSignature, "header %q", header)
		}
	})
}

func TestFormatTranscript(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, "", FormatTranscript(nil))
	})

	t.Run("SpeakerLabelsAndTimestamps", func(t *testing.T) {
		got := FormatTranscript([]dto.TranscriptTurn{
			{Role: "agent", Message: "Hi, am I speaking with Alice?", TimeInCallSecs: 0},
			{Role: "user", Message: "Yes, speaking.", TimeInCallSecs: 4.7},
			{Role: "agent", Message: "Great, quick question about your plan.", TimeInCallSecs: 62},
		})
		want := "[00:00] Agent: Hi, am I speaking with Alice?\n" +
			"[00:04] Customer: Yes, speaking.\n" +
			"[01:02] Agent: Great, quick question about your plan."
		assert.Equal(t, want, got)
	})

	t.Run("UnknownRoleIsCustomer", func(t *testing.T) {
		got := FormatTranscript([]dto.TranscriptTurn{
			{Role: "system", Message: "Call connected.", TimeInCallSecs: 125},
		})
		assert.Equal(t, "[02:05] Customer: Call connected.", got)
	})
}
