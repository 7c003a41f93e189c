package measurements

import (
	"database/sql"
	"time"
)

const measurementColumns = `id, weight, CAST("timestamp" AS TEXT), image, machine`

func scanMeasurement(scanner interface{ Scan(dest ...any) error }) (*Measurement, error) {
	var (
		id        int64
		weight    sql.NullInt64
		timestamp any
		image     sql.NullString
		machine   sql.NullString
	)
	if err := scanner.Scan(&id, &weight, &timestamp, &image, &machine); err != nil {
		return nil, err
	}
	return &Measurement{
		ID:        id,
		Weight:    int(weight.Int64),
		Timestamp: timestampString(timestamp),
		Image:     image.String,
		Machine:   machine.String,
	}, nil
}

func timestampString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(TimestampLayout)
	default:
		return ""
	}
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
