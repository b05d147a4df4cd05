// Package enrich は記事のAIエンリッチメント機能を提供する。
// OpenAI互換のチャット補完APIを使用した感情・トピック解析クライアントと、
// バッチ解析からの個別フォールバックを調整するコーディネーターを含む。
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/newspulse/internal/model"
)

// maxTopicsPerArticle は1記事あたりに保持するトピックの上限。
const maxTopicsPerArticle = 5

// Analysis は1記事分の解析結果を表す。
type Analysis struct {
	Sentiment model.Sentiment
	Topics    []string
}

// Client はOpenAI互換チャット補完APIのクライアント。
// Bearerトークン認証でJSON形式の解析結果を取得する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
	model      string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey, modelName string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      modelName,
	}
}

// chatRequest はチャット補完APIのリクエストボディ。
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *responseFmt  `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

// chatResponse はチャット補完APIのレスポンスボディ。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// analysisPayload はモデルが返すJSONの1記事分の形式。
type analysisPayload struct {
	Index     int      `json:"index"`
	Sentiment string   `json:"sentiment"`
	Topics    []string `json:"topics"`
}

const systemPrompt = `You are a news analysis assistant. For each article you receive, ` +
	`classify its sentiment as exactly one of "positive", "neutral", or "negative", ` +
	`and extract up to 5 short topic labels. ` +
	`Respond with JSON only, in the form {"results":[{"index":0,"sentiment":"neutral","topics":["..."]}]} ` +
	`with one entry per article, using the article's index.`

// AnalyzeBatch は複数記事を1回のAPI呼び出し（1予算単位相当）で解析する。
// 戻り値は記事IDをキーとするマップ。レスポンスに含まれない記事や
// 不正な感情ラベルの記事はマップに含まれない。
func (c *Client) AnalyzeBatch(ctx context.Context, articles []*model.Article) (map[string]Analysis, error) {
	if len(articles) == 0 {
		return map[string]Analysis{}, nil
	}

	var sb strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&sb, "[%d] Title: %s\n", i, a.Title)
		if a.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", truncate(a.Description, 500))
		}
		sb.WriteString("\n")
	}

	content, err := c.complete(ctx, sb.String())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []analysisPayload `json:"results"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("解析結果JSONのパースに失敗しました: %w", err)
	}

	results := make(map[string]Analysis, len(articles))
	for _, p := range parsed.Results {
		if p.Index < 0 || p.Index >= len(articles) {
			continue
		}
		sentiment := model.Sentiment(strings.ToLower(strings.TrimSpace(p.Sentiment)))
		if !sentiment.IsValid() {
			c.logger.Warn("不正な感情ラベルを無視します",
				slog.Int("index", p.Index),
				slog.String("sentiment", p.Sentiment),
			)
			continue
		}
		results[articles[p.Index].ID] = Analysis{
			Sentiment: sentiment,
			Topics:    normalizeTopics(p.Topics),
		}
	}

	return results, nil
}

// AnalyzeOne は1記事を個別に解析する。バッチ失敗時のフォールバック用。
func (c *Client) AnalyzeOne(ctx context.Context, article *model.Article) (*Analysis, error) {
	results, err := c.AnalyzeBatch(ctx, []*model.Article{article})
	if err != nil {
		return nil, err
	}
	analysis, ok := results[article.ID]
	if !ok {
		return nil, fmt.Errorf("解析結果に記事が含まれていません: %s", article.ID)
	}
	return &analysis, nil
}

// complete はチャット補完APIを1回呼び出し、モデルの応答本文を返す。
func (c *Client) complete(ctx context.Context, userContent string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature:    0,
		ResponseFormat: &responseFmt{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストJSONの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("AIプロバイダーの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AIプロバイダーがステータス %d を返しました", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("AIプロバイダーの応答にchoicesが含まれていません")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// normalizeTopics はトピックを正規化する。
// 前後の空白を除去し、空文字列を捨て、大文字小文字を区別せずに重複を除き、
// 上限数に切り詰める。元の表記（大文字小文字）は最初の出現を保持する。
func normalizeTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	normalized := make([]string, 0, len(topics))
	for _, t := range topics {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, trimmed)
		if len(normalized) >= maxTopicsPerArticle {
			break
		}
	}
	return normalized
}

// truncate は文字列をmaxバイト以内に切り詰める。
// 切断位置がマルチバイト文字の途中になった場合、不完全なバイト列は除去する。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "")
}
