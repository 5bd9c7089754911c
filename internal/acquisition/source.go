package acquisition

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/morikuni/failure/v2"

	"gomarket_mdm/pkg/records"
)

type Kind string

const (
	KindHTTP Kind = "http"
	KindSFTP Kind = "sftp"
	KindFile Kind = "file"
)

type PullStatus string

const (
	PullStatusSuccess PullStatus = "success"
	PullStatusError   PullStatus = "error"
)

// RemoteSource: зарегистрированный источник данных поставщика.
// LastPulledAt и LastPullStatus меняет только вызывающий код после завершённой выгрузки.
type RemoteSource struct {
	ID             string         `json:"id" validate:"required"`
	Label          string         `json:"label"`
	Kind           Kind           `json:"kind" validate:"required"`
	Path           string         `json:"path"`
	Options        map[string]any `json:"options,omitempty"`
	LastPulledAt   *time.Time     `json:"last_pulled_at,omitempty"`
	LastPullStatus PullStatus     `json:"last_pull_status,omitempty"`
}

var validate = validator.New()

func (s RemoteSource) Validate() error {
	if err := validate.Struct(s); err != nil {
		return failure.Wrap(err, failure.WithCode(ErrInvalidSource),
			failure.Message("invalid source: "+err.Error()),
			failure.Context{"source": s.ID},
		)
	}
	return nil
}

// StatusFor переводит итог выгрузки в статус источника.
func StatusFor(outcome PullOutcome) PullStatus {
	if outcome.Success {
		return PullStatusSuccess
	}
	return PullStatusError
}

// Payload: сырые данные, которые вернул Puller.
type Payload struct {
	Body       []byte
	Filename   string
	SourcePath string
	// Parse: параметры разбора из настроек источника (разделитель, кодировка, заголовок).
	Parse records.Options
}

// PullOutcome: итог одной попытки выгрузки. Вызывающий код видит только последний.
type PullOutcome struct {
	Success      bool             `json:"success"`
	Message      string           `json:"message"`
	RawBody      string           `json:"raw_body,omitempty"`
	Records      []records.Record `json:"records,omitempty"`
	Columns      []string         `json:"columns,omitempty"`
	FileLabel    string           `json:"file_label,omitempty"`
	SourcePath   string           `json:"source_path,omitempty"`
	TotalRecords int              `json:"total_records"`
	Attempts     int              `json:"attempts"`
	ErrorCode    ErrorCode        `json:"error_code,omitempty"`
	Err          error            `json:"-"`
}
