package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newspulse/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// ContentSanitizer は記事説明文のサニタイズのインターフェース。
type ContentSanitizer interface {
	Sanitize(rawHTML string) string
}

// Fetcher は個別ソースのHTTPフェッチとパースを行う。
// SSRF検証、サイズ上限付きのボディ読み取り、gofeedによるパース、
// エントリのカノニカル化（リンク正規化と説明文サニタイズ）を実行する。
// 予算の消費は呼び出し側（Runner）が管理する。1フェッチ＝1単位。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	sanitizer   ContentSanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	ssrfGuard SSRFValidator,
	sanitizer ContentSanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchFeed はソースのフィードをフェッチしてパースし、正規化済みエントリを返す。
// エントリが0件のフィードは正常（空スライスを返す）。
// フェッチ失敗・非2xxステータス・パース失敗はいずれもエラーとして返し、
// 判断（エラー記録と次ソースへの継続）は呼び出し側に委ねる。
func (f *Fetcher) FetchFeed(ctx context.Context, source *model.Source) ([]model.FeedItem, error) {
	start := time.Now()

	// SSRF検証（登録時に検証済みだが、取得時にも再検証する）
	if err := f.ssrfGuard.ValidateURL(source.FeedURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", "Newspulse/1.0 Feed Ingestor")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	items := f.convertItems(source, parsedFeed.Items)

	f.logger.Info("フィードのフェッチが完了しました",
		slog.String("source_id", source.ID),
		slog.String("feed_url", source.FeedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_total", len(parsedFeed.Items)),
		slog.Int("items_usable", len(items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return items, nil
}

// convertItems はgofeedのエントリを正規化済みのFeedItemに変換する。
// リンクを持たない（GUIDがURL形式でもない）エントリは重複排除キーを
// 構成できないためスキップする。
// 正規化後のリンクがフィード内で重複するエントリ（フラグメントのみ異なる等）は
// 最初の出現のみを残す。
func (f *Fetcher) convertItems(source *model.Source, items []*gofeed.Item) []model.FeedItem {
	converted := make([]model.FeedItem, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		link := item.Link

		// LinkがなくGUIDがURL形式の場合はGUIDをリンクとして使用
		if link == "" && item.GUID != "" &&
			(strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			link = item.GUID
		}

		if link == "" {
			f.logger.Warn("リンクを持たないエントリをスキップします",
				slog.String("source_id", source.ID),
				slog.String("title", item.Title),
			)
			continue
		}

		canonical, err := CanonicalizeLink(link)
		if err != nil {
			f.logger.Warn("リンクの正規化に失敗したエントリをスキップします",
				slog.String("source_id", source.ID),
				slog.String("link", link),
				slog.String("error", err.Error()),
			)
			continue
		}

		if seen[canonical] {
			f.logger.Info("フィード内で重複するリンクのエントリをスキップします",
				slog.String("source_id", source.ID),
				slog.String("link", canonical),
			)
			continue
		}
		seen[canonical] = true

		// 公開日時: 公開日時がなければ更新日時、それもなければ現在時刻
		publishedAt := time.Now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		converted = append(converted, model.FeedItem{
			Title:       strings.TrimSpace(item.Title),
			Description: f.sanitizer.Sanitize(item.Description),
			Link:        canonical,
			PublishedAt: publishedAt,
		})
	}

	return converted
}

// CanonicalizeLink はリンクを重複排除用のカノニカル形式に正規化する。
// スキームとホストを小文字化し、デフォルトポート（http:80, https:443）と
// フラグメントを除去し、パス末尾のスラッシュを取り除く。
// クエリ文字列はそのまま保持する。
// 同一入力に対して常に同一出力を返す（冪等）。
func CanonicalizeLink(rawLink string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawLink))
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("link is not absolute: %s", rawLink)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	// デフォルトポートの除去
	if host, port, found := strings.Cut(parsed.Host, ":"); found {
		if (parsed.Scheme == "http" && port == "80") ||
			(parsed.Scheme == "https" && port == "443") {
			parsed.Host = host
		}
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	// 末尾スラッシュの除去（ルートパスも含む）
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawPath = ""

	return parsed.String(), nil
}
