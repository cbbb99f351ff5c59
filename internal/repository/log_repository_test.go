package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saessak-edu/saessak-api/internal/models"
)

func TestLogRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO activity_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO activity_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	date := "2024-05-01"
	logs := []*models.ActivityLog{
		{StudentID: "stu-1", LogDate: &date, EmotionTag: "기쁨", RelatedMetrics: json.RawMessage(`{"minutes":30}`)},
		{StudentID: "stu-1", LogDate: &date, EmotionTag: "슬픔"},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), logs))
	assert.NotEmpty(t, logs[0].ID)
	assert.NotEmpty(t, logs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "upload_id", "log_date", "emotion_tag", "activity_tags", "log_content", "related_metrics", "created_at", "updated_at"}).
		AddRow("log-1", "stu-1", nil, "2024-05-01", "기쁨", []byte(`["수확"]`), "내용", []byte(`{"minutes":30}`), time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, student_id, upload_id, log_date").
		WithArgs("stu-1", "2024-05-01", "2024-05-31").
		WillReturnRows(rows)

	logs, err := repo.ListByStudent(context.Background(), models.ActivityLogFilter{
		StudentID: "stu-1",
		From:      "2024-05-01",
		To:        "2024-05-31",
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "기쁨", logs[0].EmotionTag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	require.NoError(t, repo.Update(context.Background(), "log-1", models.UpdateActivityLogRequest{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	mock.ExpectExec("UPDATE activity_logs SET").
		WithArgs("슬픔", sqlmock.AnyArg(), "log-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	emotion := "슬픔"
	require.NoError(t, repo.Update(context.Background(), "log-1", models.UpdateActivityLogRequest{EmotionTag: &emotion}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLogRepository(db)

	mock.ExpectExec("DELETE FROM activity_logs").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
