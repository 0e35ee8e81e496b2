// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer はサインアップ時の表示名からマークアップを除去する。
// 表示名は出席者一覧にそのまま表示されるため、保存前に無害化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名のサニタイズ機能のインターフェースを定義する。
type NameSanitizerService interface {
	// Sanitize はすべてのHTMLタグを除去し、連続する空白を1つにまとめた表示名を返す。
	// script, styleタグは内容ごと除去される。
	Sanitize(name string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティの多重エンコードを解く最大回数。
const maxSanitizePasses = 8

// Sanitize は表示名を無害化する。
// エンティティでエンコードされたタグも復号してから除去し、出力が変化しなくなるまで繰り返す。
// 上限回数内に収束しない入力は空文字列とする。
func (s *nameSanitizer) Sanitize(name string) string {
	current := name
	for range maxSanitizePasses {
		next := s.pass(current)
		if next == current {
			return current
		}
		current = next
	}
	return ""
}

// pass は復号、タグ除去、再復号、空白の正規化を1回行う。
// StrictPolicyはテキストをエスケープして返すため、保存用に元の文字へ戻す。
func (s *nameSanitizer) pass(name string) string {
	stripped := s.policy.Sanitize(html.UnescapeString(name))
	stripped = html.UnescapeString(stripped)
	return strings.Join(strings.Fields(stripped), " ")
}

// compile-time interface check
var _ NameSanitizerService = (*nameSanitizer)(nil)
