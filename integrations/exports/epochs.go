package exports

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"yzyvault/native/vault"
)

// EpochRow is one epoch of the vault ledger in export form. Amounts are base
// unit decimal strings.
type EpochRow struct {
	Epoch        uint64
	StartTime    uint64
	Period       uint64
	Reward       string
	TotalStaked  string
	Materialised bool
}

// Rows flattens epoch views for export, skipping nil entries.
func Rows(views []*vault.EpochView) []EpochRow {
	rows := make([]EpochRow, 0, len(views))
	for _, view := range views {
		if view == nil {
			continue
		}
		rows = append(rows, EpochRow{
			Epoch:        view.Epoch,
			StartTime:    view.StartTime,
			Period:       view.Period,
			Reward:       amountString(view.Reward),
			TotalStaked:  amountString(view.TotalStaked),
			Materialised: view.Materialised,
		})
	}
	return rows
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
