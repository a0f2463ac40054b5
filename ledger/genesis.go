package ledger

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// Genesis declares the initial ledger state: per-account ATLAS allocations
// and the admin key allowed to originate issuance transfers. The issuance
// reserve account must be funded here or inflation entries cannot apply.
type Genesis struct {
	Allocations    map[string]uint64 `yaml:"allocations"`
	AdminPublicKey string            `yaml:"adminPublicKey"`
}

// LoadGenesis reads a genesis manifest from disk.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis file: %w", err)
	}
	g := &Genesis{}
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("parse genesis file: %w", err)
	}
	if _, err := g.AdminKeyBytes(); err != nil {
		return nil, err
	}
	return g, nil
}

// AdminKeyBytes decodes the configured admin public key.
func (g *Genesis) AdminKeyBytes() ([]byte, error) {
	if g.AdminPublicKey == "" {
		return nil, nil
	}
	pk, err := hex.DecodeString(g.AdminPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis admin key: %w", err)
	}
	if len(pk) != 32 {
		return nil, fmt.Errorf("genesis admin key must be 32 bytes, got %d", len(pk))
	}
	return pk, nil
}

// Seed credits every allocation into the state map.
func (g *Genesis) Seed(state *State) {
	for account, amount := range g.Allocations {
		state.Credit(account, AtlasAssetID, uint256.NewInt(amount))
	}
}
