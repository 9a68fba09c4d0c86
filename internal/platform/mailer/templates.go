package mailer

import (
	"fmt"
	"html"
	"strings"
)

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}

// PasswordReset carries the one-time reset link. The link is only ever
// delivered by email.
func PasswordReset(toEmail, toName, resetURL string) Message {
	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
		"If you didn't forget your password, please ignore this email!", resetURL)
	return Message{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: "Your password reset token (valid for 10 min)",
		Tags:    []string{"password-reset"},
		Text:    text,
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Forgot your password? Reset it here: <a href="%s">%s</a></p>`+
			`<p>If you didn't forget your password, please ignore this email!</p>`,
			html.EscapeString(firstName(toName)), resetURL, html.EscapeString(resetURL)),
	}
}

func Welcome(toEmail, toName, accountURL string) Message {
	return Message{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: "Welcome to the LuxSuv Tours family!",
		Tags:    []string{"welcome"},
		Text: fmt.Sprintf("Hi %s, welcome to LuxSuv Tours! Upload a profile photo and start exploring: %s",
			firstName(toName), accountURL),
		HTML: fmt.Sprintf(`<p>Hi %s, welcome to LuxSuv Tours!</p><p><a href="%s">Set up your account</a></p>`,
			html.EscapeString(firstName(toName)), accountURL),
	}
}

func BookingConfirmation(toEmail, toName, tourName string, price float64, bookingsURL string) Message {
	return Message{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: fmt.Sprintf("Your booking for %s is confirmed", tourName),
		Tags:    []string{"booking"},
		Text: fmt.Sprintf("Hi %s, thanks for booking %s ($%.2f). See all your tours at %s",
			firstName(toName), tourName, price, bookingsURL),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Thanks for booking <b>%s</b> ($%.2f).</p><p><a href="%s">My tours</a></p>`,
			html.EscapeString(firstName(toName)), html.EscapeString(tourName), price, bookingsURL),
	}
}
