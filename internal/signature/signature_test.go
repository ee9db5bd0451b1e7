package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var secret = []byte("test_secret_123")

func TestSign_Deterministic(t *testing.T) {
	sig := Sign(secret, []byte(`{"events":[]}`))
	require.Len(t, sig, 44)
	require.Equal(t, sig, Sign(secret, []byte(`{"events":[]}`)))
}

func TestVerify_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		[]byte(`{"destination":"U1","events":[]}`),
		[]byte("メモ記録モード"),
		{0x00, 0xff, 0x10, 0x80},
	}
	for _, p := range payloads {
		require.True(t, Verify(secret, p, Sign(secret, p)), "payload=%q", p)
	}
}

func TestVerify_SingleBitMutationFails(t *testing.T) {
	payload := []byte(`{"events":[{"type":"message"}]}`)
	sig := Sign(secret, payload)
	for i := range payload {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), payload...)
			mutated[i] ^= 1 << bit
			require.False(t, Verify(secret, mutated, sig), "byte=%d bit=%d", i, bit)
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	payload := []byte("hello")
	require.False(t, Verify([]byte("other"), payload, Sign(secret, payload)))
}

func TestVerify_MalformedCandidates(t *testing.T) {
	payload := []byte("hello")
	sig := Sign(secret, payload)
	cases := map[string]string{
		"empty":       "",
		"truncated":   sig[:len(sig)-1],
		"extended":    sig + "A",
		"not base64":  "!!!!",
		"single char": "a",
	}
	for name, candidate := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, Verify(secret, payload, candidate))
			})
		})
	}
}
