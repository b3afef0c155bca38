package envelope

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer([]byte("test-envelope-secret"))
	require.NoError(t, err)
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestSealer(t)

	sealed, err := s.Seal([]byte("client-wrapped-private-key"))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(sealed), &env))
	assert.Equal(t, CurrentVersion, env.Version)
	assert.Equal(t, AlgorithmAESGCM, env.Algorithm)
	assert.NotEmpty(t, env.IV)
	assert.NotContains(t, sealed, "client-wrapped-private-key")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("client-wrapped-private-key"), opened)
}

func TestSealer_FreshIVPerSeal(t *testing.T) {
	t.Parallel()
	s := newTestSealer(t)

	a, err := s.SealString("same")
	require.NoError(t, err)
	b, err := s.SealString("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_JSONMap(t *testing.T) {
	t.Parallel()
	s := newTestSealer(t)

	in := map[string]string{"heir-1": "AAAA", "heir-2": "BBBB"}
	sealed, err := s.SealJSON(in)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, s.OpenJSON(sealed, &out))
	assert.Equal(t, in, out)
}

func TestSealer_WrongSecret(t *testing.T) {
	t.Parallel()
	s := newTestSealer(t)
	other, err := NewSealer([]byte("another-secret"))
	require.NoError(t, err)

	sealed, err := s.SealString("secret")
	require.NoError(t, err)

	_, err = other.OpenString(sealed)
	assert.Error(t, err)
}

func TestSealer_OpenRejects(t *testing.T) {
	t.Parallel()
	s := newTestSealer(t)

	sealed, err := s.SealString("payload")
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(sealed), &env))

	mutate := func(f func(e *Envelope)) string {
		e := env
		f(&e)
		out, err := json.Marshal(e)
		require.NoError(t, err)
		return string(out)
	}

	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{name: "not json", in: "v1:abc", wantErr: ErrMalformed},
		{name: "future version", in: mutate(func(e *Envelope) { e.Version = 2 }), wantErr: ErrUnsupportedVersion},
		{name: "unknown algorithm", in: mutate(func(e *Envelope) { e.Algorithm = "XOR" }), wantErr: ErrUnsupportedAlgorithm},
		{name: "short iv", in: mutate(func(e *Envelope) { e.IV = "AAAA" }), wantErr: ErrMalformed},
		{name: "tampered ciphertext", in: mutate(func(e *Envelope) {
			raw, _ := base64.StdEncoding.DecodeString(e.Ciphertext)
			raw[0] ^= 0xff
			e.Ciphertext = base64.StdEncoding.EncodeToString(raw)
		})},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := s.Open(tt.in)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewSealer_EmptySecret(t *testing.T) {
	t.Parallel()
	_, err := NewSealer(nil)
	assert.Error(t, err)
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	raw := []byte{0xfb, 0xff, 0x01, 0x02}
	std := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{name: "standard padded", in: std, ok: true},
		{name: "empty", in: "", ok: false},
		{name: "url alphabet", in: base64.URLEncoding.EncodeToString(raw), ok: false},
		{name: "missing padding", in: base64.RawStdEncoding.EncodeToString(raw), ok: false},
		{name: "whitespace", in: std + "\n", ok: false},
		{name: "not base64", in: "not base64!", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Canonical(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrNotCanonical)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)

			decoded, err := DecodeCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, raw, decoded)
		})
	}
}
