package messaging

import "fmt"

// Consent-layer copy. Flow replies live in the flow package; everything
// sent before a contact has usable consent lives here.

const (
	msgConsentDeclined = "Thank you for your response. We respect your privacy. If you change your mind, you can reply YES anytime."

	msgConsentWithdrawnReminder = "We respect your privacy choice. To use our services, please reply YES to provide consent."
)

func greeting(name string) string {
	if name == "" {
		return "Hi there!"
	}
	return fmt.Sprintf("Hi %s!", name)
}

// consentRequest is the welcome sent before consent is on record.
func consentRequest(name string) string {
	return fmt.Sprintf("%s \U0001F44B\n\nWelcome to Fridge Business! We buy and repair fridges.\n\n*Privacy Notice:*\nTo provide you with our services, we need to process your personal information. By continuing, you consent to us using your WhatsApp number and name to communicate with you about our services.\n\nReply *YES* to consent and continue, or *NO* to decline.\n\nFor more info, reply *INFO*.", greeting(name))
}

// welcomeMenu is the post-consent welcome with the keyword menu.
func welcomeMenu(name string) string {
	return fmt.Sprintf("%s \U0001F44B\n\nWelcome to Fridge Business! We buy and repair fridges.\n\nWhat can we help you with today?\n\nReply with:\n• *SELL* - Sell your fridge\n• *REPAIR* - Repair your fridge\n• *INFO* - More information\n\nOur team is here to help! \U0001F6E0️", greeting(name))
}

func photoReceivedAck() string {
	return "✅ Photo received! Thank you.\n\nWe've added it to your repair request."
}

func photoTicketCreated(code string) string {
	return fmt.Sprintf("✅ Photo received! Thank you.\n\n*Ticket ID:* %s\n\nOur team will contact you within 24 hours to schedule a visit.\n\nThank you! \U0001F64F", code)
}
