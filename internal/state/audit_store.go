package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nereus-fi/levengine/internal/types"
)

// Plan types recorded in the audit trail.
const (
	PlanTypeMint   = "mint"
	PlanTypeRedeem = "redeem"
)

// SaveMintAudit records a generated mint plan. The audit row is written
// before execution; UpdateAuditOutcome fills in the result later.
func SaveMintAudit(chainID uint64, tokenAddress string, slippageBps int, plan types.MintPlan) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO plan_audits (
			plan_type, chain_id, token_address, block_number, slippage_bps,
			amount_in, preview_out, min_out, flash_loan_amount, call_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING audit_id`

	var auditID int64
	err := DB.QueryRow(insertSQL,
		PlanTypeMint, int64(chainID), tokenAddress, int64(plan.BlockNumber), slippageBps,
		plan.EquityInCollateral.String(), plan.PreviewShares.String(), plan.MinShares.String(),
		plan.FlashLoanAmount.String(), len(plan.Calls),
	).Scan(&auditID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert mint audit: %w", err)
	}

	log.Debug().Int64("auditId", auditID).Str("token", tokenAddress).Msg("Saved mint plan audit")
	return auditID, nil
}

// SaveRedeemAudit records a generated redeem plan.
func SaveRedeemAudit(chainID uint64, tokenAddress string, slippageBps int, plan types.RedeemPlan) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO plan_audits (
			plan_type, chain_id, token_address, block_number, slippage_bps,
			amount_in, preview_out, min_out, call_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING audit_id`

	var auditID int64
	err := DB.QueryRow(insertSQL,
		PlanTypeRedeem, int64(chainID), tokenAddress, int64(plan.BlockNumber), slippageBps,
		plan.SharesToRedeem.String(), plan.PreviewCollateralForSender.String(),
		plan.MinCollateralForSender.String(), len(plan.Calls),
	).Scan(&auditID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert redeem audit: %w", err)
	}

	log.Debug().Int64("auditId", auditID).Str("token", tokenAddress).Msg("Saved redeem plan audit")
	return auditID, nil
}

// UpdateAuditOutcome records the execution result against an audit row.
func UpdateAuditOutcome(auditID int64, txHash string, success bool) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	result, err := DB.Exec(
		`UPDATE plan_audits SET tx_hash = $1, success = $2 WHERE audit_id = $3`,
		txHash, success, auditID,
	)
	if err != nil {
		return fmt.Errorf("failed to update audit outcome: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check audit update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("audit row %d not found", auditID)
	}
	return nil
}
