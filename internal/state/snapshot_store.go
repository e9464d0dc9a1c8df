package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nereus-fi/levengine/internal/types"
)

// APYSnapshotRecord is one persisted yield observation.
type APYSnapshotRecord struct {
	CycleID        uuid.UUID
	Timestamp      time.Time
	ChainID        uint64
	TokenAddress   string
	TokenSymbol    string
	TargetLeverage float64
	StakingYield   float64
	RestakingYield float64
	BorrowRate     float64
	RewardsAPR     float64
	Points         float64
	TotalAPY       float64
	Utilization    float64
	RewardTokens   []types.RewardToken
	SourceErrors   map[string]string
}

// SaveAPYSnapshot persists one aggregated yield result for a refresh cycle.
// Per-source errors are flattened to strings; nil entries are omitted.
func SaveAPYSnapshot(cycleID uuid.UUID, chainID uint64, symbol string, result types.AggregatedAPY) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	rewardTokensJSON, err := json.Marshal(result.RewardTokens)
	if err != nil {
		return fmt.Errorf("failed to marshal reward tokens: %w", err)
	}

	sourceErrors := make(map[string]string)
	for source, srcErr := range result.Errors {
		if srcErr != nil {
			sourceErrors[source] = srcErr.Error()
		}
	}
	sourceErrorsJSON, err := json.Marshal(sourceErrors)
	if err != nil {
		return fmt.Errorf("failed to marshal source errors: %w", err)
	}

	insertSQL := `
		INSERT INTO apy_snapshots (
			cycle_id, chain_id, token_address, token_symbol,
			target_leverage, staking_yield, restaking_yield, borrow_rate,
			rewards_apr, points, total_apy, utilization, reward_tokens, source_errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = DB.Exec(insertSQL,
		cycleID, int64(chainID), result.Token.Hex(), symbol,
		result.TargetLeverage, result.StakingYield, result.RestakingYield, result.BorrowRate,
		result.RewardsAPR, result.Points, result.TotalAPY, result.Utilization,
		rewardTokensJSON, sourceErrorsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert APY snapshot: %w", err)
	}

	log.Debug().
		Str("cycleId", cycleID.String()).
		Str("token", result.Token.Hex()).
		Float64("totalApy", result.TotalAPY).
		Msg("Saved APY snapshot")
	return nil
}

// LoadLatestAPYSnapshots returns the most recent snapshot per token on a chain.
func LoadLatestAPYSnapshots(chainID uint64) ([]APYSnapshotRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	querySQL := `
		SELECT DISTINCT ON (token_address)
			cycle_id, snapshot_timestamp, chain_id, token_address, token_symbol,
			target_leverage, staking_yield, restaking_yield, borrow_rate,
			rewards_apr, points, total_apy, COALESCE(utilization, 0),
			reward_tokens, source_errors
		FROM apy_snapshots
		WHERE chain_id = $1
		ORDER BY token_address, snapshot_timestamp DESC`

	rows, err := DB.Query(querySQL, int64(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to query APY snapshots: %w", err)
	}
	defer rows.Close()

	var records []APYSnapshotRecord
	for rows.Next() {
		var rec APYSnapshotRecord
		var chainIDRaw int64
		var rewardTokensJSON, sourceErrorsJSON []byte

		err := rows.Scan(
			&rec.CycleID, &rec.Timestamp, &chainIDRaw, &rec.TokenAddress, &rec.TokenSymbol,
			&rec.TargetLeverage, &rec.StakingYield, &rec.RestakingYield, &rec.BorrowRate,
			&rec.RewardsAPR, &rec.Points, &rec.TotalAPY, &rec.Utilization,
			&rewardTokensJSON, &sourceErrorsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan APY snapshot row: %w", err)
		}
		rec.ChainID = uint64(chainIDRaw)

		if len(rewardTokensJSON) > 0 {
			if err := json.Unmarshal(rewardTokensJSON, &rec.RewardTokens); err != nil {
				return nil, fmt.Errorf("failed to unmarshal reward tokens: %w", err)
			}
		}
		if len(sourceErrorsJSON) > 0 {
			if err := json.Unmarshal(sourceErrorsJSON, &rec.SourceErrors); err != nil {
				return nil, fmt.Errorf("failed to unmarshal source errors: %w", err)
			}
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating APY snapshot rows: %w", err)
	}

	return records, nil
}
