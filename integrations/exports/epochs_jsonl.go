package exports

import (
	"bytes"
	"encoding/json"

	"yzyvault/native/vault"
)

// EpochsJSONL builds a JSON Lines export of the supplied epochs and returns
// the serialised payload alongside a checksum.
func EpochsJSONL(views []*vault.EpochView) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range Rows(views) {
		payload := map[string]interface{}{
			"epoch":        row.Epoch,
			"start_time":   row.StartTime,
			"period":       row.Period,
			"reward":       row.Reward,
			"total_staked": row.TotalStaked,
			"materialised": row.Materialised,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
