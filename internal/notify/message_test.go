package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

func TestCompose(t *testing.T) {
	config := pipekit.NotificationConfig{Sender: "etl@example.com", Recipient: "ops@example.com"}.WithDefaults()
	date := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		state       pipekit.TaskState
		wantSubject string
		wantBody    string
	}{
		{
			name:        "success",
			state:       pipekit.TaskStateSuccess,
			wantSubject: "Airflow Report: Task extract_sales executed successfully",
			wantBody:    "The task extract_sales on DAG daily_sales scheduled at 2024-05-01 06:00:00+00:00 has executed successfully.",
		},
		{
			name:        "failed",
			state:       pipekit.TaskStateFailed,
			wantSubject: "Airflow Report: Task extract_sales failed",
			wantBody:    "The task extract_sales on DAG daily_sales scheduled at 2024-05-01 06:00:00+00:00 has failed.",
		},
		{
			name:        "any other state is a failure",
			state:       "up_for_retry",
			wantSubject: "Airflow Report: Task extract_sales failed",
			wantBody:    "The task extract_sales on DAG daily_sales scheduled at 2024-05-01 06:00:00+00:00 has failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := pipekit.TaskContext{TaskID: "extract_sales", DagID: "daily_sales", State: tt.state, ExecutionDate: date}

			msg := Compose(config, task)

			assert.Equal(t, tt.wantSubject, msg.Subject)
			assert.Equal(t, tt.wantBody, msg.Body)
			assert.Equal(t, "etl@example.com", msg.From)
			assert.Equal(t, "ops@example.com", msg.To)
		})
	}
}

func TestCompose_SubjectPrefix(t *testing.T) {
	config := pipekit.NotificationConfig{Sender: "a@b.c", SubjectPrefix: "Nightly ETL"}.WithDefaults()

	msg := Compose(config, pipekit.TaskContext{TaskID: "t", State: pipekit.TaskStateSuccess})

	assert.Equal(t, "Nightly ETL: Task t executed successfully", msg.Subject)
	assert.Equal(t, "a@b.c", msg.To, "recipient defaults to sender")
}

func TestFormatExecutionDate(t *testing.T) {
	cet := time.FixedZone("CET", 3600)

	assert.Equal(t, "2024-05-01 06:00:00+00:00", FormatExecutionDate(time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-01 06:00:00.123456+01:00", FormatExecutionDate(time.Date(2024, 5, 1, 6, 0, 0, 123456789, cet)))
	assert.Equal(t, "2024-05-01 06:00:00.000500+00:00", FormatExecutionDate(time.Date(2024, 5, 1, 6, 0, 0, 500000, time.UTC)))
	assert.Equal(t, "2024-05-01 06:00:00+00:00", FormatExecutionDate(time.Date(2024, 5, 1, 6, 0, 0, 999, time.UTC)), "sub-microsecond precision is dropped")
	assert.Equal(t, "None", FormatExecutionDate(time.Time{}))
}
