package utils

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

const key32 = "0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt([]byte(`{"sessionid":"abc"}`), []byte(key32))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	plain, err := Decrypt(sealed, []byte(key32))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != `{"sessionid":"abc"}` {
		t.Fatalf("Decrypt = %q", plain)
	}

	again, _ := Encrypt([]byte(`{"sessionid":"abc"}`), []byte(key32))
	if again == sealed {
		t.Fatal("expected a fresh nonce per call")
	}
}

func TestDecryptErrors(t *testing.T) {
	sealed, err := Encrypt([]byte("x"), []byte(key32))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data string
		key  string
	}{
		{"bad base64", "%%%", key32},
		{"short", base64.StdEncoding.EncodeToString([]byte("abc")), key32},
		{"wrong key", sealed, "fedcba9876543210fedcba9876543210"},
		{"bad key size", sealed, "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(tt.data, []byte(tt.key)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, err = Decrypt(base64.StdEncoding.EncodeToString([]byte("abc")), []byte(key32))
	if !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("err = %v, want ErrCiphertextTooShort", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "ops", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Operator != "ops" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := ValidateToken("other", token); err == nil {
		t.Fatal("expected signature error")
	}

	expired, err := GenerateToken("secret", "ops", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateToken("secret", expired); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestGenerateRandomKey(t *testing.T) {
	a, err := GenerateRandomKey(16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateRandomKey(16)
	if a == b || len(a) != 22 {
		t.Fatalf("keys %q %q", a, b)
	}
}
