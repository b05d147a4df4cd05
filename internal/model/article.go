// Package model はドメインモデルを定義する。
package model

import "time"

// Sentiment は記事のAI判定による感情ラベルを表す。
type Sentiment string

const (
	// SentimentPositive は肯定的な感情ラベル。
	SentimentPositive Sentiment = "positive"
	// SentimentNeutral は中立的な感情ラベル。
	SentimentNeutral Sentiment = "neutral"
	// SentimentNegative は否定的な感情ラベル。
	SentimentNegative Sentiment = "negative"
)

// IsValid はSentimentが定義済みラベルのいずれかであることを検証する。
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Article は永続化された記事を表す。
// Linkはグローバルに一意であり、重複排除キーとして使用される。
// SentimentはEnrichment Coordinatorによって後から書き込まれる（未解析の場合はnil）。
type Article struct {
	ID          string
	SourceID    string
	Title       string
	Description string
	Link        string
	PublishedAt time.Time
	Sentiment   *Sentiment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Topic はAIプロバイダーが返したトピック（大文字小文字を区別せず一意）を表す。
type Topic struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
