package verifier

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func sharedKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

func sampleClaim() Claim {
	return Claim{
		TokenID:    "0b6f3c7e-7a52-4f0c-9a0e-1c4d2f7d9b11",
		PlayerUUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5",
		PlayerName: "Notch",
		Action:     "login",
		ExpireAt:   1893456000000,
	}
}

func newDecryptor(t *testing.T) *Decryptor {
	t.Helper()
	d, err := NewDecryptor(sharedKey(t), nil)
	require.NoError(t, err)
	return d
}

func mutateEnvelope(t *testing.T, raw string, fn func(*Envelope)) string {
	t.Helper()
	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	fn(env)
	out, err := env.Encode()
	require.NoError(t, err)
	return out
}

func flipFirstByte(t *testing.T, b64 string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	raw[0] ^= 0x01
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecryptRoundTrip(t *testing.T) {
	d := newDecryptor(t)
	claim := sampleClaim()

	sealed, err := Seal(d.PublicKey(), claim, json.Number("1.0"))
	require.NoError(t, err)

	got, err := d.Decrypt(sealed.Envelope)
	require.NoError(t, err)

	assert.Equal(t, claim, got.Claim)
	assert.Equal(t, sealed.PlainBase64, got.PlainBase64)
	assert.Equal(t, "aes-256-gcm", got.Algorithm)
}

func TestDecryptRoundTripUnknownVersionFallsBack(t *testing.T) {
	d := newDecryptor(t)

	sealed, err := Seal(d.PublicKey(), sampleClaim(), json.Number("7"))
	require.NoError(t, err)

	got, err := d.Decrypt(sealed.Envelope)
	require.NoError(t, err)
	assert.Equal(t, "aes-256-gcm", got.Algorithm)
}

func TestDecryptAcceptsNonStandardIV(t *testing.T) {
	d := newDecryptor(t)
	claim := sampleClaim()

	claimJSON, err := json.Marshal(claim)
	require.NoError(t, err)
	plainBase64 := base64.StdEncoding.EncodeToString(claimJSON)

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	iv := make([]byte, 16)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	ct, tag, err := aesGCM{}.Seal(key, iv, []byte(plainBase64))
	require.NoError(t, err)
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, d.PublicKey(), key, nil)
	require.NoError(t, err)

	env := Envelope{
		EncryptedKey:     base64.StdEncoding.EncodeToString(wrapped),
		IV:               base64.StdEncoding.EncodeToString(iv),
		AuthTag:          base64.StdEncoding.EncodeToString(tag),
		AlgorithmVersion: json.Number("1"),
		EncryptedData:    base64.StdEncoding.EncodeToString(ct),
	}
	raw, err := env.Encode()
	require.NoError(t, err)

	got, err := d.Decrypt(raw)
	require.NoError(t, err)
	assert.Equal(t, claim.PlayerUUID, got.Claim.PlayerUUID)
}

func TestDecryptTamperRejection(t *testing.T) {
	d := newDecryptor(t)
	sealed, err := Seal(d.PublicKey(), sampleClaim(), json.Number("1.0"))
	require.NoError(t, err)

	t.Run("encryptedData", func(t *testing.T) {
		raw := mutateEnvelope(t, sealed.Envelope, func(e *Envelope) {
			e.EncryptedData = flipFirstByte(t, e.EncryptedData)
		})
		_, err := d.Decrypt(raw)
		assert.ErrorIs(t, err, ErrPayloadDecrypt)
	})

	t.Run("authTag", func(t *testing.T) {
		raw := mutateEnvelope(t, sealed.Envelope, func(e *Envelope) {
			e.AuthTag = flipFirstByte(t, e.AuthTag)
		})
		_, err := d.Decrypt(raw)
		assert.ErrorIs(t, err, ErrPayloadDecrypt)
	})

	t.Run("iv", func(t *testing.T) {
		raw := mutateEnvelope(t, sealed.Envelope, func(e *Envelope) {
			e.IV = flipFirstByte(t, e.IV)
		})
		_, err := d.Decrypt(raw)
		assert.ErrorIs(t, err, ErrPayloadDecrypt)
	})

	t.Run("encryptedKey", func(t *testing.T) {
		raw := mutateEnvelope(t, sealed.Envelope, func(e *Envelope) {
			e.EncryptedKey = flipFirstByte(t, e.EncryptedKey)
		})
		_, err := d.Decrypt(raw)
		assert.ErrorIs(t, err, ErrKeyUnwrap)
	})

	t.Run("every ciphertext byte", func(t *testing.T) {
		env, err := DecodeEnvelope(sealed.Envelope)
		require.NoError(t, err)
		ct, err := base64.StdEncoding.DecodeString(env.EncryptedData)
		require.NoError(t, err)

		for i := range ct {
			mutated := append([]byte(nil), ct...)
			mutated[i] ^= 0x80
			raw := mutateEnvelope(t, sealed.Envelope, func(e *Envelope) {
				e.EncryptedData = base64.StdEncoding.EncodeToString(mutated)
			})
			_, err := d.Decrypt(raw)
			require.ErrorIs(t, err, ErrPayloadDecrypt, "byte %d", i)
		}
	})
}

func TestDecryptWrongKey(t *testing.T) {
	d := newDecryptor(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	sealed, err := Seal(&other.PublicKey, sampleClaim(), json.Number("1.0"))
	require.NoError(t, err)

	_, err = d.Decrypt(sealed.Envelope)
	assert.ErrorIs(t, err, ErrKeyUnwrap)
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	d := newDecryptor(t)

	cases := map[string]string{
		"not base64":     "%%%not-base64%%%",
		"not json":       base64.StdEncoding.EncodeToString([]byte("hello")),
		"missing fields": base64.StdEncoding.EncodeToString([]byte(`{"iv":"AAAA"}`)),
		"json array":     base64.StdEncoding.EncodeToString([]byte(`[1,2,3]`)),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decrypt(raw)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDecryptIncompleteClaim(t *testing.T) {
	d := newDecryptor(t)

	claim := sampleClaim()
	claim.Action = ""
	sealed, err := Seal(d.PublicKey(), claim, json.Number("1.0"))
	require.NoError(t, err)

	_, err = d.Decrypt(sealed.Envelope)
	assert.ErrorIs(t, err, ErrIncompleteClaim)

	claim = sampleClaim()
	claim.ExpireAt = 0
	sealed, err = Seal(d.PublicKey(), claim, json.Number("1.0"))
	require.NoError(t, err)

	_, err = d.Decrypt(sealed.Envelope)
	assert.ErrorIs(t, err, ErrIncompleteClaim)
}

func TestMillisAcceptsStringAndNumber(t *testing.T) {
	var c Claim
	require.NoError(t, json.Unmarshal([]byte(`{"expire_at":"1700000000000"}`), &c))
	assert.Equal(t, Millis(1700000000000), c.ExpireAt)

	require.NoError(t, json.Unmarshal([]byte(`{"expire_at":1700000000001}`), &c))
	assert.Equal(t, Millis(1700000000001), c.ExpireAt)

	assert.Error(t, json.Unmarshal([]byte(`{"expire_at":"soon"}`), &c))
}

func TestHash(t *testing.T) {
	sum := sha256.Sum256([]byte("cGxhaW4=" + "remote-token" + "salt"))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, ComputeHash("cGxhaW4=", "remote-token", "salt"))
	assert.True(t, HashMatches("cGxhaW4=", "remote-token", "salt", want))

	tampered := []byte(want)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	assert.False(t, HashMatches("cGxhaW4=", "remote-token", "salt", string(tampered)))
	assert.False(t, HashMatches("cGxhaW4=", "other-token", "salt", want))
}

func TestParseKeysRoundTrip(t *testing.T) {
	privPEM, pubPEM, err := GenerateKeyPEM(2048)
	require.NoError(t, err)

	priv, err := ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	pub, err := ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))

	_, err = ParsePrivateKeyPEM([]byte("not a key"))
	assert.ErrorIs(t, err, ErrPrivateKeyFormat)
}
