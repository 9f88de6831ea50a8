package vault

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456") // 32 bytes for AES-256
	plaintext := []byte(`[{"id":"p1","name":"Ana"}]`)

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if bytes.Contains(ciphertext, []byte("Ana")) {
		t.Fatal("Ciphertext should not contain the plaintext")
	}

	decrypted, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Expected %s, got %s", plaintext, decrypted)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key1 := []byte("thisis32byteslongsecretkey123456")
	key2 := []byte("another32byteslongsecretkey65432")

	ciphertext, err := Encrypt([]byte("Secret message"), key1)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	_, err = Decrypt(ciphertext, key2)
	if !errors.Is(err, ErrDecrypt) {
		t.Fatalf("Expected ErrDecrypt with wrong key, got %v", err)
	}
}

func TestInvalidKeySize(t *testing.T) {
	invalidKey := []byte("shortkey")

	if _, err := Encrypt([]byte("test"), invalidKey); err == nil {
		t.Fatal("Encryption should fail with invalid key size")
	}
	if _, err := NewBox(invalidKey); err == nil {
		t.Fatal("NewBox should reject a short key")
	}
}

func TestDecryptTooShort(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	if _, err := Decrypt([]byte("abc"), key); err == nil {
		t.Fatal("Decryption should fail with too short ciphertext")
	}
}

func TestOpenBox_SameSaltAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	b1, err := OpenBox(dir, "correct horse")
	if err != nil {
		t.Fatalf("OpenBox failed: %v", err)
	}
	sealed, err := b1.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	b2, err := OpenBox(dir, "correct horse")
	if err != nil {
		t.Fatalf("second OpenBox failed: %v", err)
	}
	plain, err := b2.Open(sealed)
	if err != nil {
		t.Fatalf("Open with reopened box failed: %v", err)
	}
	if string(plain) != "payload" {
		t.Errorf("Expected payload, got %q", plain)
	}

	b3, err := OpenBox(dir, "wrong horse")
	if err != nil {
		t.Fatalf("OpenBox with other passphrase failed: %v", err)
	}
	if _, err := b3.Open(sealed); err == nil {
		t.Fatal("Open should fail with a different passphrase")
	}
}

func TestOpenBox_EmptyPassphrase(t *testing.T) {
	if _, err := OpenBox(t.TempDir(), ""); err == nil {
		t.Fatal("OpenBox should reject an empty passphrase")
	}
}
