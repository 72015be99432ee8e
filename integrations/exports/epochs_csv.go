package exports

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"yzyvault/native/vault"
)

// EpochsCSV builds a CSV export of the supplied epochs and returns the
// serialised data alongside a SHA-256 checksum of the payload.
func EpochsCSV(views []*vault.EpochView) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"epoch", "start_time", "period", "reward", "total_staked", "materialised"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, row := range Rows(views) {
		record := []string{
			strconv.FormatUint(row.Epoch, 10),
			time.Unix(int64(row.StartTime), 0).UTC().Format(time.RFC3339),
			strconv.FormatUint(row.Period, 10),
			row.Reward,
			row.TotalStaked,
			strconv.FormatBool(row.Materialised),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
