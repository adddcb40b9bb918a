package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.French

	message.SetString(lang, "email.login_token.subject", "Votre lien de connexion")
	message.SetString(lang, "email.login_token.body", "Utilisez le lien ci-dessous pour vous connecter. Il n'est valable qu'une fois et expire rapidement.")
	message.SetString(lang, "email.password_reset.subject", "Réinitialisez votre mot de passe")
	message.SetString(lang, "email.password_reset.body", "Utilisez le lien ci-dessous pour choisir un nouveau mot de passe. Si vous n'avez rien demandé, ignorez cet email.")
}
