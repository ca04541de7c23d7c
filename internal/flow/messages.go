package flow

import "fmt"

// Reply copy for the intake flows. Kept in one place so the conversational
// voice stays consistent.

const (
	msgSellStart = "Great! Let's get started with selling your fridge. \U0001F60A\n\nWhat's your name?"

	msgNameTooShort = "Please provide a valid name (at least 2 characters)."

	msgVillageNotFound = "I couldn't find that village. Please check the list and try again, or type the village name exactly as shown."

	msgConditionMenu = "Now, what's the condition of your fridge?\n\nReply with:\n• *EXCELLENT* - Like new, works perfectly\n• *GOOD* - Works well, minor wear\n• *FAIR* - Works but needs some repairs\n• *POOR* - Not working or major issues"

	msgConditionInvalid = "Please reply with EXCELLENT, GOOD, FAIR, or POOR to describe your fridge condition."

	msgOfferAccepted = "Excellent! ✅\n\nWe've accepted your offer. Our team will contact you shortly to arrange pickup.\n\nYou'll receive a confirmation message with pickup details soon.\n\nThank you for choosing Fridge Business! \U0001F64F"

	msgOfferDeclined = "No problem! If you change your mind, just reply with SELL anytime. \U0001F44B"

	msgOfferNegotiate = "I understand you'd like to discuss the price. Our team will contact you shortly to negotiate. Please wait for our call. \U0001F4DE"

	msgOfferResponseInvalid = "Please reply with YES, NO, or NEGOTIATE."

	msgRepairStart = "We can help with repairs! \U0001F527\n\nPlease describe the issue with your fridge.\n\nFor example:\n• Not cooling\n• Making strange noises\n• Leaking water\n• Not turning on\n\nWhat's wrong?"

	msgDescriptionTooShort = "Please provide more details about the issue (at least 10 characters)."

	msgPhotoPromptSuffix = "Would you like to send a photo of the issue? (Optional)\n\nReply with:\n• *SKIP* - Continue without photo\n• Or send a photo of your fridge"

	msgTicketCreateFailed = "Sorry, there was an error creating your repair request. Please try again or contact support."

	msgInfo = "Fridge Business - We buy used fridges and provide repair services. Reply with SELL to sell your fridge or REPAIR for service requests."

	msgIdleNudge = "Thanks for your message! Reply with SELL, REPAIR, or INFO for quick help."
)

func msgNiceToMeet(name, villagePrompt string) string {
	return fmt.Sprintf("Nice to meet you, %s! \U0001F44B\n\n%s", name, villagePrompt)
}

func msgVillageNoted(villageName string) string {
	return fmt.Sprintf("Thanks! %s noted. \U0001F4CD\n\n%s", villageName, msgConditionMenu)
}

func msgOffer(amount int, condition, villageName string) string {
	return fmt.Sprintf("Perfect! I have all the details. \U0001F4CB\n\n*Your Offer:*\n\U0001F4B0 R %d\n\n*Details:*\n• Condition: %s\n• Location: %s\n\nWould you like to accept this offer?\n\nReply with:\n• *YES* - Accept offer\n• *NO* - Decline\n• *NEGOTIATE* - Discuss price", amount, condition, villageName)
}

func msgRepairDescriptionNoted(villagePrompt string) string {
	return fmt.Sprintf("Got it! \U0001F4DD\n\n%s", villagePrompt)
}

func msgRepairVillageNoted(villageName string) string {
	return fmt.Sprintf("Perfect! %s noted. \U0001F4CD\n\n%s", villageName, msgPhotoPromptSuffix)
}

func msgTicketCreated(code string) string {
	return fmt.Sprintf("✅ Repair request created!\n\n*Ticket ID:* %s\n\nOur team will contact you within 24 hours to schedule a visit.\n\nYou'll receive a confirmation message with appointment details.\n\nThank you! \U0001F64F", code)
}
