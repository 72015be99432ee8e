package exports

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"yzyvault/native/vault"
)

type parquetRow struct {
	Epoch        int64  `parquet:"name=epoch, type=INT64"`
	StartTime    int64  `parquet:"name=start_time, type=INT64"`
	Period       int64  `parquet:"name=period, type=INT64"`
	Reward       string `parquet:"name=reward, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalStaked  string `parquet:"name=total_staked, type=BYTE_ARRAY, convertedtype=UTF8"`
	Materialised bool   `parquet:"name=materialised, type=BOOLEAN"`
}

// EpochsParquet builds a snappy-compressed parquet export of the supplied
// epochs and returns the file bytes alongside a checksum.
func EpochsParquet(views []*vault.EpochView) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range Rows(views) {
		pr := &parquetRow{
			Epoch:        int64(row.Epoch),
			StartTime:    int64(row.StartTime),
			Period:       int64(row.Period),
			Reward:       row.Reward,
			TotalStaked:  row.TotalStaked,
			Materialised: row.Materialised,
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
