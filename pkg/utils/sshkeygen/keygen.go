// Package sshkeygen creates the Ed25519 key pair used to authenticate against an
// SFTP storage backend.
package sshkeygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyPair describes a generated or existing key pair on disk.
type KeyPair struct {
	PrivateKeyPath string
	PublicKeyPath  string
	// AuthorizedKey is the public key line for the server's authorized_keys.
	AuthorizedKey string
	Created       bool
}

// Generate writes privateKeyPath and privateKeyPath+".pub". An existing key is
// kept unless overwrite is set; its public half is read back either way.
func Generate(privateKeyPath, comment string, overwrite bool) (*KeyPair, error) {
	kp := &KeyPair{PrivateKeyPath: privateKeyPath, PublicKeyPath: privateKeyPath + ".pub"}

	if _, err := os.Stat(privateKeyPath); err == nil && !overwrite {
		return kp, kp.loadExisting()
	}

	if err := os.MkdirAll(filepath.Dir(privateKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(privKey, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(privateKeyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create public key: %w", err)
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		line += " " + comment
	}
	if err := os.WriteFile(kp.PublicKeyPath, []byte(line+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}

	kp.AuthorizedKey = line
	kp.Created = true
	return kp, nil
}

func (kp *KeyPair) loadExisting() error {
	data, err := os.ReadFile(kp.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && missing.PublicKey != nil {
			kp.AuthorizedKey = strings.TrimSpace(string(ssh.MarshalAuthorizedKey(missing.PublicKey)))
			return nil
		}
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	kp.AuthorizedKey = strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
	return nil
}

// DefaultPath is the key location used when none is configured.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ssh", "supplyhub_ed25519"), nil
}
