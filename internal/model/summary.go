// Package model はドメインモデルを定義する。
package model

// SourceError はRunSummaryに記録されるソース単位の失敗を表す。
type SourceError struct {
	SourceID   string `json:"sourceId"`
	SourceName string `json:"sourceName"`
	Error      string `json:"error"`
}

// SkippedArticles は予算不足によりスキップされた記事数をソース単位で表す。
type SkippedArticles struct {
	SourceID     string `json:"sourceId"`
	SourceName   string `json:"sourceName"`
	SkippedCount int    `json:"skippedCount"`
}

// AIAnalysisSummary はAIエンリッチメントの試行結果の集計を表す。
type AIAnalysisSummary struct {
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RunSummary は1回のパイプライン実行の集計結果を表す。
// 実行ごとに新規に構築され、呼び出し元に返されるのみで永続化はされない。
type RunSummary struct {
	Processed         int               `json:"processed"`
	Succeeded         int               `json:"succeeded"`
	Failed            int               `json:"failed"`
	ArticlesCreated   int               `json:"articlesCreated"`
	DuplicatesSkipped int               `json:"duplicatesSkipped"`
	Errors            []SourceError     `json:"errors"`
	SkippedSources    int               `json:"skippedSources"`
	SkippedArticles   []SkippedArticles `json:"skippedArticles"`
	HasMoreWork       bool              `json:"hasMoreWork"`
	StoppedEarly      bool              `json:"stoppedEarly"`
	AIAnalysis        AIAnalysisSummary `json:"aiAnalysis"`
}

// RecordSourceError はソース単位の失敗をサマリーに追加する。
func (s *RunSummary) RecordSourceError(sourceID, sourceName, errMsg string) {
	s.Failed++
	s.Errors = append(s.Errors, SourceError{
		SourceID:   sourceID,
		SourceName: sourceName,
		Error:      errMsg,
	})
}

// RecordSkippedArticles は予算不足でスキップされた記事数をサマリーに追加する。
// countが0の場合は何も記録しない。
func (s *RunSummary) RecordSkippedArticles(sourceID, sourceName string, count int) {
	if count <= 0 {
		return
	}
	s.SkippedArticles = append(s.SkippedArticles, SkippedArticles{
		SourceID:     sourceID,
		SourceName:   sourceName,
		SkippedCount: count,
	})
}
