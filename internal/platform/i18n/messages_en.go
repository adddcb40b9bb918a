package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "email.login_token.subject", "Your sign-in link")
	message.SetString(lang, "email.login_token.body", "Use the link below to sign in. It can be used once and expires soon.")
	message.SetString(lang, "email.password_reset.subject", "Reset your password")
	message.SetString(lang, "email.password_reset.body", "Use the link below to choose a new password. If you did not ask for it, ignore this email.")
}
