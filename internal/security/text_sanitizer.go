// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は外部サービスから受け取った文字列（プロバイダーのエラーメッセージ、
// ターミナルに表示するテーブルの値）からマークアップと制御文字を取り除く。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は文字列をプレーンテキストに変換する。
// bluemondayのStrictPolicyで全タグを除去した後、エンティティを戻し、
// タブと改行以外の制御文字（ANSIエスケープを含む）を除去する。
// 並行に使用できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はsをプレーンテキストにして返す。空文字列には空文字列を返す。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)
}

// Line はTextの結果を1行にまとめる。改行とタブは空白に置き換える。
func (s *TextSanitizer) Line(raw string) string {
	return strings.Join(strings.Fields(s.Text(raw)), " ")
}
