// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"filippo.io/age"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
)

// Signer produces an armored detached signature over data with the key
// named by keyHandle.
type Signer interface {
	Sign(ctx context.Context, data []byte, keyHandle string) ([]byte, error)
}

// Verifier checks an armored detached signature and returns the
// fingerprint of the key that made it.
type Verifier interface {
	Verify(ctx context.Context, data, signature []byte) (string, error)
}

// ErrUnknownKey is returned when a key handle matches no key with
// usable secret material.
var ErrUnknownKey = errors.New("unknown signing key")

const (
	clearSuffix  = ".asc"
	sealedSuffix = ".asc.age"
)

// Keyring holds OpenPGP entities indexed by fingerprint and long key
// ID.
type Keyring struct {
	entities openpgp.EntityList
	byHandle map[string]*openpgp.Entity
}

// NewKeyring indexes the given entities.
func NewKeyring(entities openpgp.EntityList) *Keyring {
	keyring := &Keyring{byHandle: make(map[string]*openpgp.Entity)}
	for _, entity := range entities {
		keyring.add(entity)
	}
	return keyring
}

func (k *Keyring) add(entity *openpgp.Entity) {
	k.entities = append(k.entities, entity)
	k.byHandle[Fingerprint(entity)] = entity
	k.byHandle[strings.ToUpper(entity.PrimaryKey.KeyIdString())] = entity
}

// LoadKeyring reads every *.asc and *.asc.age file in dir. Sealed files
// are decrypted with the identities in identityFile, which may be empty
// when dir holds no sealed keys. A missing dir yields an empty keyring.
func LoadKeyring(dir, identityFile string, logger *slog.Logger) (*Keyring, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	keyring := &Keyring{byHandle: make(map[string]*openpgp.Entity)}
	if dir == "" {
		return keyring, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return keyring, nil
		}
		return nil, fmt.Errorf("reading keyring directory %s: %w", dir, err)
	}

	var identities []age.Identity
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, name)

		var armored []byte
		switch {
		case strings.HasSuffix(name, sealedSuffix):
			if identities == nil {
				identities, err = loadIdentities(identityFile)
				if err != nil {
					return nil, err
				}
			}
			armored, err = openSealed(path, identities)
		case strings.HasSuffix(name, clearSuffix):
			armored, err = os.ReadFile(path)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}

		entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
		if err != nil {
			return nil, fmt.Errorf("parsing keys in %s: %w", path, err)
		}
		for _, entity := range entities {
			if entity.PrivateKey == nil {
				logger.Warn("key has no secret material, usable for verification only",
					"file", path, "fingerprint", Fingerprint(entity))
			} else if entity.PrivateKey.Encrypted {
				return nil, fmt.Errorf("key %s in %s is passphrase-protected; seal it with age instead", Fingerprint(entity), path)
			}
			keyring.add(entity)
			logger.Debug("loaded key", "file", path, "fingerprint", Fingerprint(entity))
		}
	}
	return keyring, nil
}

func loadIdentities(identityFile string) ([]age.Identity, error) {
	if identityFile == "" {
		return nil, errors.New("sealed keys present but no age identity file configured")
	}
	file, err := os.Open(identityFile)
	if err != nil {
		return nil, fmt.Errorf("opening age identity file: %w", err)
	}
	defer file.Close()
	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("parsing age identity file %s: %w", identityFile, err)
	}
	return identities, nil
}

func openSealed(path string, identities []age.Identity) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader, err := age.Decrypt(file, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted %s: %w", path, err)
	}
	return plaintext, nil
}

// Seal encrypts an armored secret key to one or more age recipients
// (age1... strings), producing the content of a *.asc.age file.
func Seal(armoredKey []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(armoredKey); err != nil {
		return nil, fmt.Errorf("writing key to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return sealed.Bytes(), nil
}

// Fingerprint returns the upper-case hex fingerprint of an entity's
// primary key.
func Fingerprint(entity *openpgp.Entity) string {
	return fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint[:])
}

// normalizeHandle strips "0x", spaces and case from a key handle.
func normalizeHandle(handle string) string {
	handle = strings.ReplaceAll(strings.TrimSpace(handle), " ", "")
	handle = strings.TrimPrefix(strings.TrimPrefix(handle, "0x"), "0X")
	return strings.ToUpper(handle)
}

// Lookup returns the entity named by handle.
func (k *Keyring) Lookup(handle string) (*openpgp.Entity, bool) {
	entity, ok := k.byHandle[normalizeHandle(handle)]
	return entity, ok
}

// Fingerprints returns the fingerprints of every key, sorted.
func (k *Keyring) Fingerprints() []string {
	fingerprints := make([]string, 0, len(k.entities))
	for _, entity := range k.entities {
		fingerprints = append(fingerprints, Fingerprint(entity))
	}
	slices.Sort(fingerprints)
	return fingerprints
}

// Sign implements [Signer].
func (k *Keyring) Sign(ctx context.Context, data []byte, keyHandle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entity, ok := k.Lookup(keyHandle)
	if !ok || entity.PrivateKey == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyHandle)
	}
	var signature bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&signature, entity, bytes.NewReader(data), nil); err != nil {
		return nil, fmt.Errorf("signing with %s: %w", Fingerprint(entity), err)
	}
	return signature.Bytes(), nil
}

// Verify implements [Verifier].
func (k *Keyring) Verify(ctx context.Context, data, signature []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	signer, err := openpgp.CheckArmoredDetachedSignature(k.entities, bytes.NewReader(data), bytes.NewReader(signature))
	if err != nil {
		return "", fmt.Errorf("checking signature: %w", err)
	}
	return Fingerprint(signer), nil
}

// ExportPublic returns the armored public key named by handle, suitable
// for publishing next to the archive.
func (k *Keyring) ExportPublic(handle string) ([]byte, error) {
	entity, ok := k.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, handle)
	}
	var buffer bytes.Buffer
	writer, err := armor.Encode(&buffer, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := entity.Serialize(writer); err != nil {
		return nil, fmt.Errorf("serializing %s: %w", Fingerprint(entity), err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
