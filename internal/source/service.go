package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newspulse/internal/model"
	"github.com/hitoshi/newspulse/internal/repository"
)

// Detector はフィード自動検出のインターフェース。
type Detector interface {
	DetectFeedURL(ctx context.Context, inputURL string) (string, error)
}

// Service はソース登録・一覧のドメインロジックを提供する。
type Service struct {
	sourceRepo repository.SourceRepository
	detector   Detector
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sourceRepo repository.SourceRepository, detector Detector, logger *slog.Logger) *Service {
	return &Service{
		sourceRepo: sourceRepo,
		detector:   detector,
		logger:     logger,
	}
}

// Register は新しいソースを登録する。
// 入力URLはフィード自動検出（SSRF検証を含む）を経てフィードURLに解決される。
// 解決後のフィードURLが登録済みの場合はDUPLICATE_SOURCEエラーを返す。
func (s *Service) Register(ctx context.Context, name, inputURL string) (*model.Source, error) {
	feedURL, err := s.detector.DetectFeedURL(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.sourceRepo.FindByFeedURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("登録済みソースの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateSourceError(feedURL)
	}

	if name == "" {
		name = extractHost(feedURL)
	}

	now := time.Now()
	src := &model.Source{
		ID:        uuid.New().String(),
		Name:      name,
		FeedURL:   feedURL,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sourceRepo.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("ソースの作成に失敗しました: %w", err)
	}

	s.logger.Info("ソースを登録しました",
		slog.String("source_id", src.ID),
		slog.String("name", src.Name),
		slog.String("feed_url", src.FeedURL),
	)

	return src, nil
}

// List は全ソースを作成日時昇順で取得する。
func (s *Service) List(ctx context.Context) ([]*model.Source, error) {
	return s.sourceRepo.List(ctx)
}
