// Package door はドア開錠の認可エンジンと関連する管理操作を提供する。
//
// 開錠判定は厳密な優先順位で評価される:
//  1. コード経路（コードが指定された場合のみ）: 対象ドアの未使用コードを
//     原子的に消費できれば許可。消費できないコードは黙って権限経路へ落ちる。
//  2. 権限経路: 認証済みユーザーの(door, user)権限行がcan_open=trueなら許可。
//
// どちらの経路でも許可時はアクセス履歴に1件追記する。拒否時は追記しない。
// 判定は常にフェイルクローズであり、曖昧な状態やストレージ障害は拒否方向に倒す。
package door

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/doorman/internal/model"
	"github.com/hitoshi/doorman/internal/repository"
)

// OpenMethod は開錠が許可された経路を表す。
type OpenMethod string

const (
	// OpenMethodCode はワンタイムコードの消費による開錠を示す。
	OpenMethodCode OpenMethod = "code"
	// OpenMethodPermission は常設権限による開錠を示す。
	OpenMethodPermission OpenMethod = "permission"
)

// DenyReason は開錠拒否の理由カテゴリを表す。
// ドアIDの存在有無を漏らさない粒度に抑えている。
type DenyReason string

const (
	// DenyNoCodeAndUnauthenticated はコードも認証もないリクエストを示す。
	DenyNoCodeAndUnauthenticated DenyReason = "NO_CODE_AND_UNAUTHENTICATED"
	// DenyCodeInvalidOrUsed は指定されたコードが未知・使用済み・期限切れ・
	// ドア不一致のいずれかで、権限経路でも許可されなかったことを示す。
	DenyCodeInvalidOrUsed DenyReason = "CODE_INVALID_OR_USED"
	// DenyPermissionAbsent は認証済みだが権限行がないかcan_open=falseであることを示す。
	DenyPermissionAbsent DenyReason = "PERMISSION_ABSENT"
)

// OpenResult は開錠判定の結果を表す。
type OpenResult struct {
	Opened bool
	Method OpenMethod // 許可時のみ設定される
	Reason DenyReason // 拒否時のみ設定される
}

// MetricsRecorder はエンジンが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordOpenGranted(method string)
	RecordOpenDenied(reason string)
	RecordCodeIssued()
}

// nopMetrics はメトリクス未設定時のフォールバック。
type nopMetrics struct{}

func (nopMetrics) RecordOpenGranted(string) {}
func (nopMetrics) RecordOpenDenied(string)  {}
func (nopMetrics) RecordCodeIssued()        {}

// Service はドア管理と開錠判定のビジネスロジックを提供する。
type Service struct {
	doorRepo   repository.DoorRepository
	permRepo   repository.PermissionRepository
	codeRepo   repository.CodeRepository
	accessRepo repository.AccessRepository
	metrics    MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	doorRepo repository.DoorRepository,
	permRepo repository.PermissionRepository,
	codeRepo repository.CodeRepository,
	accessRepo repository.AccessRepository,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		doorRepo:   doorRepo,
		permRepo:   permRepo,
		codeRepo:   codeRepo,
		accessRepo: accessRepo,
		metrics:    metrics,
	}
}

// Open はドア開錠を判定し、許可時はアクセス履歴に追記する。
// userは未認証の場合nil、codeは未指定の場合空文字列。
// ドアの存在確認は行わない（存在有無を拒否理由から判別できなくするため）。
func (s *Service) Open(ctx context.Context, doorID string, user *model.User, code string) (*OpenResult, error) {
	codeSupplied := code != ""

	// 1. コード経路。消費は条件付きUPDATE1文で行われ、
	//    同一コードの同時消費は高々1つしか成功しない。
	if codeSupplied {
		redeemed, err := s.codeRepo.Redeem(ctx, code, doorID)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem code: %w", err)
		}
		if redeemed != nil {
			if err := s.recordAccess(ctx, doorID, user); err != nil {
				return nil, err
			}
			s.metrics.RecordOpenGranted(string(OpenMethodCode))
			slog.Info("door opened via code",
				slog.String("door_id", doorID),
			)
			return &OpenResult{Opened: true, Method: OpenMethodCode}, nil
		}

		// 無効なコードの指定はコード探索の兆候になり得るため、
		// コード未指定の拒否とは区別して警告ログに残す。
		slog.Warn("invalid or consumed door code supplied",
			slog.String("door_id", doorID),
		)
	}

	// 2. 権限経路。認証済みユーザーのみ評価する。
	if user != nil {
		perm, err := s.permRepo.Find(ctx, doorID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to find permission: %w", err)
		}
		if perm != nil && perm.CanOpen {
			if err := s.recordAccess(ctx, doorID, user); err != nil {
				return nil, err
			}
			s.metrics.RecordOpenGranted(string(OpenMethodPermission))
			slog.Info("door opened via permission",
				slog.String("door_id", doorID),
				slog.String("user_id", user.ID),
			)
			return &OpenResult{Opened: true, Method: OpenMethodPermission}, nil
		}

		return s.deny(DenyPermissionAbsent), nil
	}

	if codeSupplied {
		return s.deny(DenyCodeInvalidOrUsed), nil
	}
	return s.deny(DenyNoCodeAndUnauthenticated), nil
}

// deny は拒否結果を生成しメトリクスに記録する。履歴には追記しない。
func (s *Service) deny(reason DenyReason) *OpenResult {
	s.metrics.RecordOpenDenied(string(reason))
	return &OpenResult{Opened: false, Reason: reason}
}

// recordAccess はアクセス履歴に1件追記する。
// コードによる匿名開錠の場合、ユーザーIDはnilで記録される。
func (s *Service) recordAccess(ctx context.Context, doorID string, user *model.User) error {
	rec := &model.AccessRecord{
		ID:         uuid.New().String(),
		DoorID:     doorID,
		AccessedAt: time.Now(),
	}
	if user != nil {
		userID := user.ID
		rec.UserID = &userID
	}

	if err := s.accessRepo.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to append access record: %w", err)
	}
	return nil
}

// CreateDoor はドアを作成する。作成者が所有者になる。
func (s *Service) CreateDoor(ctx context.Context, owner *model.User, about *string) (*model.Door, error) {
	ownerID := owner.ID
	door := &model.Door{
		ID:        uuid.New().String(),
		About:     about,
		OwnerID:   &ownerID,
		CreatedAt: time.Now(),
	}

	if err := s.doorRepo.Create(ctx, door); err != nil {
		return nil, fmt.Errorf("failed to create door: %w", err)
	}

	slog.Info("door created",
		slog.String("door_id", door.ID),
		slog.String("owner_id", ownerID),
	)
	return door, nil
}

// GetDoor はドアを取得する。見つからない場合はAPIErrorを返す。
func (s *Service) GetDoor(ctx context.Context, doorID string) (*model.Door, error) {
	door, err := s.doorRepo.FindByID(ctx, doorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find door: %w", err)
	}
	if door == nil {
		return nil, model.NewDoorNotFoundError(doorID)
	}
	return door, nil
}

// ListOwnedDoors は指定ユーザーが所有するドアを返す。
func (s *Service) ListOwnedDoors(ctx context.Context, ownerID string) ([]*model.Door, error) {
	doors, err := s.doorRepo.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned doors: %w", err)
	}
	return doors, nil
}

// GrantPermission はドア権限を付与または更新する。
// 操作者はドアの所有者または編集権限保持者でなければならない。
// 権限行は自動では作られず、この管理操作だけが作成経路になる。
func (s *Service) GrantPermission(ctx context.Context, actor *model.User, doorID, userID string, canEdit, canOpen bool) (*model.DoorPermission, error) {
	if err := s.requireEditRights(ctx, actor, doorID); err != nil {
		return nil, err
	}

	perm := &model.DoorPermission{
		DoorID:  doorID,
		UserID:  userID,
		CanEdit: canEdit,
		CanOpen: canOpen,
	}
	if err := s.permRepo.Upsert(ctx, perm); err != nil {
		return nil, fmt.Errorf("failed to upsert permission: %w", err)
	}

	slog.Info("door permission granted",
		slog.String("door_id", doorID),
		slog.String("user_id", userID),
		slog.Bool("can_edit", canEdit),
		slog.Bool("can_open", canOpen),
	)
	return perm, nil
}

// RevokePermission はドア権限を削除する。
// 操作者はドアの所有者または編集権限保持者でなければならない。
func (s *Service) RevokePermission(ctx context.Context, actor *model.User, doorID, userID string) error {
	if err := s.requireEditRights(ctx, actor, doorID); err != nil {
		return err
	}

	if err := s.permRepo.Delete(ctx, doorID, userID); err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	slog.Info("door permission revoked",
		slog.String("door_id", doorID),
		slog.String("user_id", userID),
	)
	return nil
}

// ListPermissions はドアの全権限行を返す。
// 他ユーザーの権限内容を含むため、所有者と編集権限保持者にのみ開示する。
func (s *Service) ListPermissions(ctx context.Context, actor *model.User, doorID string) ([]*model.DoorPermission, error) {
	if err := s.requireEditRights(ctx, actor, doorID); err != nil {
		return nil, err
	}

	perms, err := s.permRepo.ListByDoorID(ctx, doorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return perms, nil
}

// GetPermission は(door, user)の権限行を返す。
// 自分自身の権限はいつでも参照できるが、他人の権限は編集権限が必要。
func (s *Service) GetPermission(ctx context.Context, actor *model.User, doorID, userID string) (*model.DoorPermission, error) {
	if actor.ID != userID {
		if err := s.requireEditRights(ctx, actor, doorID); err != nil {
			return nil, err
		}
	}

	perm, err := s.permRepo.Find(ctx, doorID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find permission: %w", err)
	}
	if perm == nil {
		return nil, model.NewPermissionDeniedError()
	}
	return perm, nil
}

// IssueCode は指定ドアのワンタイムコードを発行する。
// 操作者はドアの所有者または編集権限保持者でなければならない。
// expiresAtがnilの場合は無期限、過去の時刻の場合はエラー。
func (s *Service) IssueCode(ctx context.Context, actor *model.User, doorID string, expiresAt *time.Time) (*model.DoorCode, error) {
	if err := s.requireEditRights(ctx, actor, doorID); err != nil {
		return nil, err
	}

	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, model.NewInvalidExpiryError()
	}

	code := &model.DoorCode{
		Code:      uuid.New().String(),
		DoorID:    doorID,
		CreatorID: actor.ID,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		Used:      false,
	}
	if err := s.codeRepo.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to create code: %w", err)
	}

	s.metrics.RecordCodeIssued()
	slog.Info("door code issued",
		slog.String("door_id", doorID),
		slog.String("creator_id", actor.ID),
	)
	return code, nil
}

// GetCode はコードの詳細を返す。
// コードは開錠能力そのものなので、対象ドアの管理者にのみ開示する。
func (s *Service) GetCode(ctx context.Context, actor *model.User, code string) (*model.DoorCode, error) {
	dc, err := s.codeRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to find code: %w", err)
	}
	if dc == nil {
		return nil, model.NewCodeNotFoundError()
	}

	if err := s.requireEditRights(ctx, actor, dc.DoorID); err != nil {
		return nil, err
	}
	return dc, nil
}

// ListAccessHistory はドアのアクセス履歴を挿入順で返す。
// userIDが指定された場合はそのユーザーの記録に絞る。
func (s *Service) ListAccessHistory(ctx context.Context, doorID string, userID *string) ([]*model.AccessRecord, error) {
	// ドアの存在だけは確認する（履歴APIは404を返してよい）
	door, err := s.doorRepo.FindByID(ctx, doorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find door: %w", err)
	}
	if door == nil {
		return nil, model.NewDoorNotFoundError(doorID)
	}

	if userID != nil {
		records, err := s.accessRepo.ListByDoorAndUser(ctx, doorID, *userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list access history: %w", err)
		}
		return records, nil
	}

	records, err := s.accessRepo.ListByDoorID(ctx, doorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access history: %w", err)
	}
	return records, nil
}

// requireEditRights は操作者がドアの所有者または編集権限保持者であることを検証する。
// ドアが存在しない場合はDOOR_NOT_FOUNDを返す（管理操作は存在を隠さない）。
func (s *Service) requireEditRights(ctx context.Context, actor *model.User, doorID string) error {
	if actor == nil {
		return model.NewUnauthorizedError()
	}

	door, err := s.doorRepo.FindByID(ctx, doorID)
	if err != nil {
		return fmt.Errorf("failed to find door: %w", err)
	}
	if door == nil {
		return model.NewDoorNotFoundError(doorID)
	}

	if door.OwnerID != nil && *door.OwnerID == actor.ID {
		return nil
	}

	perm, err := s.permRepo.Find(ctx, doorID, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to find permission: %w", err)
	}
	if perm != nil && perm.CanEdit {
		return nil
	}

	return model.NewPermissionDeniedError()
}
