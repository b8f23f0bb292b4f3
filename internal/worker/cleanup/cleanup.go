// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションと、期限切れのまま未使用のドアコードを定期バッチで削除する。
// 使用済みコードとアクセス履歴は監査のため削除しない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと期限切れ未使用コードの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:     db,
		logger: logger,
	}
}

// Run は期限切れセッションと期限切れ未使用コードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessionResult, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	sessionsDeleted, err := sessionResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted sessions: %w", err)
	}

	// 使用済みコードは開錠の証跡として残す。消すのは期限切れの未使用コードだけ。
	codeResult, err := j.db.ExecContext(ctx,
		`DELETE FROM door_codes WHERE used = FALSE AND expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		j.logger.Error("期限切れドアコードの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired codes: %w", err)
	}
	codesDeleted, err := codeResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted codes: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Int64("codes_deleted", codesDeleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
