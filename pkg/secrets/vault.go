// Package secrets generates hashlock secrets and verifies their reveal.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

// Commitment is a collision-resistant one-way function producing a 256-bit digest
type Commitment interface {
	Name() string
	Sum(data ...[]byte) common.Hash
}

// Keccak256 is the commitment used by EVM escrow contracts
type Keccak256 struct{}

func (Keccak256) Name() string { return "keccak256" }

func (Keccak256) Sum(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// SHA256 is provided for chains whose HTLCs commit with sha256
type SHA256 struct{}

func (SHA256) Name() string { return "sha256" }

func (SHA256) Sum(data ...[]byte) common.Hash {
	h := sha256.New()
	for _, b := range data {
		h.Write(b)
	}
	return common.BytesToHash(h.Sum(nil))
}

// CommitmentByName returns the commitment scheme for a config value
func CommitmentByName(name string) (Commitment, error) {
	switch name {
	case "", "keccak256":
		return Keccak256{}, nil
	case "sha256":
		return SHA256{}, nil
	}
	return nil, fmt.Errorf("unknown commitment scheme: %s", name)
}

// Vault creates secrets and checks reveals against an order's hashlock
type Vault struct {
	commitment Commitment
	random     io.Reader
}

// NewVault creates a vault. Nil arguments select keccak256 and crypto/rand.
func NewVault(commitment Commitment, random io.Reader) *Vault {
	if commitment == nil {
		commitment = Keccak256{}
	}
	if random == nil {
		random = rand.Reader
	}
	return &Vault{
		commitment: commitment,
		random:     random,
	}
}

// Commitment returns the configured commitment scheme
func (v *Vault) Commitment() Commitment {
	return v.commitment
}

// GenerateSecrets returns n independent 256-bit secrets
func (v *Vault) GenerateSecrets(n int) ([]models.Secret, error) {
	if n <= 0 {
		return nil, fmt.Errorf("secret count must be positive, got %d", n)
	}
	secrets := make([]models.Secret, n)
	for i := range secrets {
		if _, err := io.ReadFull(v.random, secrets[i][:]); err != nil {
			return nil, fmt.Errorf("failed to read randomness for secret %d: %w", i, err)
		}
	}
	return secrets, nil
}

// Hash commits to a single secret
func (v *Vault) Hash(secret models.Secret) common.Hash {
	return v.commitment.Sum(secret[:])
}

// HashAll commits to every secret, preserving order
func (v *Vault) HashAll(secrets []models.Secret) []common.Hash {
	hashes := make([]common.Hash, len(secrets))
	for i, s := range secrets {
		hashes[i] = v.Hash(s)
	}
	return hashes
}

// BuildHashLock combines secret hashes into one lock.
// The lock covers the concatenation in order, so reordering the hashes changes it.
func (v *Vault) BuildHashLock(hashes []common.Hash) common.Hash {
	parts := make([][]byte, len(hashes))
	for i := range hashes {
		parts[i] = hashes[i].Bytes()
	}
	return v.commitment.Sum(parts...)
}

// Commit generates n secrets along with their hashes and the combined lock
func (v *Vault) Commit(n int) ([]models.Secret, []common.Hash, common.Hash, error) {
	secrets, err := v.GenerateSecrets(n)
	if err != nil {
		return nil, nil, common.Hash{}, err
	}
	hashes := v.HashAll(secrets)
	return secrets, hashes, v.BuildHashLock(hashes), nil
}

// VerifyReveal reports whether revealed opens the order's hashlock.
// Any length or hash mismatch is a failed verification; partial reveals never pass.
func (v *Vault) VerifyReveal(order *models.CrossChainOrder, revealed []models.Secret) bool {
	if order == nil || len(revealed) == 0 || len(revealed) != len(order.SecretHashes) {
		return false
	}
	hashes := v.HashAll(revealed)
	for i := range hashes {
		if hashes[i] != order.SecretHashes[i] {
			return false
		}
	}
	return v.BuildHashLock(hashes) == order.HashLock
}
