package trade

import (
	"fmt"
	"math/big"
)

// Tier names a preset of transaction fee aggressiveness.
type Tier string

const (
	TierStandard Tier = "standard"
	TierFast     Tier = "fast"
	TierTurbo    Tier = "turbo"
)

// GasConfig caps a trade's gas spend. EIP-1559 fields are in wei.
type GasConfig struct {
	GasLimit    uint64
	MaxFee      *big.Int
	PriorityFee *big.Int
}

// TierGasConfig returns the preset for the tier. An empty tier maps to
// standard.
func TierGasConfig(tier Tier) (GasConfig, error) {
	switch tier {
	case TierStandard, "":
		return GasConfig{
			GasLimit:    500_000,
			MaxFee:      big.NewInt(2_500_000),
			PriorityFee: big.NewInt(1_500_000),
		}, nil
	case TierFast:
		return GasConfig{
			GasLimit:    800_000,
			MaxFee:      big.NewInt(5_000_000_000),
			PriorityFee: big.NewInt(2_000_000_000),
		}, nil
	case TierTurbo:
		return GasConfig{
			GasLimit:    500_000,
			MaxFee:      big.NewInt(20_000_000_000),
			PriorityFee: big.NewInt(10_000_000_000),
		}, nil
	default:
		return GasConfig{}, fmt.Errorf("unknown gas tier: %s", tier)
	}
}
