// Package i18n localizes the error codes sent to clients. Japanese is the
// default language; English is available through Accept-Language.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/nfrund/goby-chat/internal/domain"
)

// Codes used by the HTTP layer only.
const (
	CodeRateLimited = "rate_limited"
	CodeNotFound    = "not_found"
)

var supported = []language.Tag{language.Japanese, language.English}

var entries = map[string][2]string{ // code: {ja, en}
	domain.CodeUsernameRequired: {"ユーザー名を入力してください", "Please enter a username"},
	domain.CodeUsernameTooLong:  {"ユーザー名が長すぎます", "The username is too long"},
	domain.CodeMessageEmpty:     {"メッセージまたは画像が必要です", "A message or an image is required"},
	domain.CodeMessageTooLong:   {"メッセージが長すぎます", "The message is too long"},
	domain.CodeLoginRequired:    {"ログインが必要です", "Please log in first"},
	domain.CodeStorageFailure:   {"保存に失敗しました。もう一度お試しください", "Could not save. Please try again"},
	domain.CodeInvalidRequest:   {"リクエストが不正です", "Invalid request"},
	domain.CodeUnknownAction:    {"不明な操作です", "Unknown action"},
	domain.CodeInvalidMessageID: {"メッセージIDが不正です", "Invalid message id"},
	domain.CodeImageURLInvalid:  {"画像URLが不正です", "Invalid image URL"},
	domain.CodeImageRequired:    {"画像ファイルを選択してください", "Please choose an image file"},
	domain.CodeImageType:        {"PNG または JPEG 画像のみアップロードできます", "Only PNG and JPEG images can be uploaded"},
	domain.CodeImageTooLarge:    {"画像のサイズが大きすぎます", "The image is too large"},
	CodeNotFound:                {"見つかりません", "Not found"},
	CodeRateLimited:             {"リクエストが多すぎます。しばらくしてからお試しください", "Too many requests. Please wait a moment"},
}

// Translator turns error codes into text.
type Translator struct {
	cat      *catalog.Builder
	matcher  language.Matcher
	fallback language.Tag
}

// New builds the catalog. defaultLang is used when a request names no
// supported language; unknown values fall back to Japanese.
func New(defaultLang string) *Translator {
	fallback := language.Japanese
	if tag, err := language.Parse(defaultLang); err == nil {
		if _, idx, conf := language.NewMatcher(supported).Match(tag); conf != language.No {
			fallback = supported[idx]
		}
	}

	cat := catalog.NewBuilder(catalog.Fallback(fallback))
	for code, texts := range entries {
		_ = cat.SetString(language.Japanese, code, texts[0])
		_ = cat.SetString(language.English, code, texts[1])
	}

	return &Translator{
		cat:      cat,
		matcher:  language.NewMatcher(supported),
		fallback: fallback,
	}
}

// Default returns the fallback language.
func (t *Translator) Default() language.Tag {
	return t.fallback
}

// Match picks the supported language for an Accept-Language header value.
func (t *Translator) Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return t.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.fallback
	}
	_, idx, conf := t.matcher.Match(tags...)
	if conf == language.No {
		return t.fallback
	}
	return supported[idx]
}

// Text returns the localized text of code. Unknown codes are returned as is.
func (t *Translator) Text(lang language.Tag, code string) string {
	p := message.NewPrinter(lang, message.Catalog(t.cat))
	return p.Sprintf(code)
}

// Error localizes err through its code.
func (t *Translator) Error(lang language.Tag, err error) string {
	return t.Text(lang, domain.CodeOf(err))
}
