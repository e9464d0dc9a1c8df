package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetCurrentCycle returns the current global refresh cycle number.
func GetCurrentCycle() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var cycle int
	err := DB.QueryRow(`SELECT current_cycle FROM refresh_counter WHERE id = 1`).Scan(&cycle)
	if err != nil {
		return 0, fmt.Errorf("failed to read refresh counter: %w", err)
	}
	return cycle, nil
}

// IncrementCycle advances the global refresh cycle and returns the new value.
func IncrementCycle() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var cycle int
	err := DB.QueryRow(`
		UPDATE refresh_counter
		SET current_cycle = current_cycle + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_cycle`).Scan(&cycle)
	if err != nil {
		return 0, fmt.Errorf("failed to increment refresh counter: %w", err)
	}

	log.Debug().Int("cycle", cycle).Msg("Advanced refresh cycle")
	return cycle, nil
}
