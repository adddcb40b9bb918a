// Package i18n resolves the caller's language and translates message keys through
// golang.org/x/text/message.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spec-kit/identity-service/internal/authctx"
)

var supported = []language.Tag{language.English, language.French}

var matcher = language.NewMatcher(supported)

// DefaultTag is used when nothing in the request matches.
func DefaultTag() language.Tag {
	return supported[0]
}

// MatchAcceptLanguage picks the supported language closest to an Accept-Language header.
func MatchAcceptLanguage(header string) language.Tag {
	header = strings.TrimSpace(header)
	if header == "" {
		return DefaultTag()
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return DefaultTag()
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultTag()
	}
	return supported[index]
}

// Translator returns a lookup for tag. Unknown keys come back unchanged.
func Translator(tag language.Tag) authctx.Translator {
	printer := message.NewPrinter(tag)
	return func(key string) string {
		return printer.Sprintf(key)
	}
}
