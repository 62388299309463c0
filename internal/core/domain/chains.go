package domain

import "fmt"

// Chain names used in logs and the status command.
var chainNames = map[uint64]string{
	1:        "ethereum",
	10:       "optimism",
	56:       "bsc",
	137:      "polygon",
	5000:     "mantle",
	8453:     "base",
	42161:    "arbitrum",
	11155111: "sepolia",
	17000:    "holesky",
}

// ChainName returns a readable name for a chain id.
func ChainName(chainID uint64) string {
	if name, ok := chainNames[chainID]; ok {
		return name
	}
	return fmt.Sprintf("chain-%d", chainID)
}
