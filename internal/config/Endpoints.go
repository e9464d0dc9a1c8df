package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RPC endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// RPCEndpoints maps a chain id to its JSON-RPC endpoints. The first entry
	// is primary; the rest are fallbacks.
	RPCEndpoints map[uint64][]string
)

// loadEndpointConfig parses RPC_ENDPOINTS into the per-chain endpoint map.
// Format: "8453=https://a,https://b;1=https://c". This function is called by
// LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	raw, err := getEnv("RPC_ENDPOINTS")
	if err != nil {
		return err
	}

	endpoints := make(map[uint64][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return errors.New("RPC_ENDPOINTS entry must be <chainId>=<url>[,<url>...], got: " + entry)
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return errors.New("RPC_ENDPOINTS chain id must be a valid uint64, got: " + parts[0])
		}
		var urls []string
		for _, u := range strings.Split(parts[1], ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			return errors.New("RPC_ENDPOINTS entry has no urls for chain " + parts[0])
		}
		endpoints[chainID] = urls
	}

	if len(endpoints) == 0 {
		return errors.New("RPC_ENDPOINTS did not contain any chain endpoints")
	}
	RPCEndpoints = endpoints

	log.Debug().
		Int("chains", len(RPCEndpoints)).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
