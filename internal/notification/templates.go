package notification

import (
	"fmt"
	"time"
)

// Notification kinds stored in the outbox.
const (
	KindAppointmentReminder = "appointment_reminder"
	KindJobCompleted        = "job_completed"
	KindFollowUp            = "follow_up"
	// KindResendReply replays a conversation reply whose original send
	// failed at the webhook.
	KindResendReply = "resend_reply"
)

// Payload carries everything a template needs, captured at schedule time so
// rendering needs no further lookups.
type Payload struct {
	CustomerName string     `json:"customerName,omitempty"`
	TicketCode   string     `json:"ticketCode,omitempty"`
	TicketType   string     `json:"ticketType,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Body         string     `json:"body,omitempty"`
}

// oneHourWindow switches the appointment reminder to its short-notice
// variant when the appointment is less than two hours away.
const oneHourWindow = 2 * time.Hour

func renderMessage(kind string, p Payload, now time.Time) string {
	name := p.CustomerName
	if name == "" {
		name = "there"
	}

	switch kind {
	case KindAppointmentReminder:
		if p.ScheduledFor == nil {
			return "Notification from Fridge Business"
		}
		if p.ScheduledFor.Sub(now) < oneHourWindow {
			return fmt.Sprintf("⏰ *Reminder: 1 Hour Until Your Appointment*\n\nHi %s!\n\nYour %s is scheduled for *1 hour from now*.\n\nOur team will arrive shortly. Please ensure you're available.\n\nThank you! \U0001F64F", name, serviceLabel(p.TicketType))
		}
		return fmt.Sprintf("\U0001F4C5 *Appointment Reminder*\n\nHi %s!\n\nThis is a friendly reminder about your scheduled appointment:\n\n*Date:* %s\n*Time:* %s\n*Type:* %s\n\nOur team will arrive at the scheduled time. If you need to reschedule, please reply to this message.\n\nThank you! \U0001F64F",
			name,
			p.ScheduledFor.Format("2006-01-02"),
			p.ScheduledFor.Format("15:04"),
			serviceTitle(p.TicketType))

	case KindJobCompleted:
		return fmt.Sprintf("✅ *Job Completed*\n\nHi %s!\n\nGreat news! Your %s has been completed successfully.\n\n*Ticket:* %s\n*Completed:* %s\n\nThank you for choosing Fridge Business! \U0001F64F\n\nIf you have any questions, feel free to reach out.",
			name, serviceLabel(p.TicketType), p.TicketCode, now.Format("2006-01-02"))

	case KindFollowUp:
		return fmt.Sprintf("\U0001F44B *How was your experience?*\n\nHi %s!\n\nWe hope you're satisfied with our recent service. We'd love to hear your feedback!\n\nReply with:\n• ⭐⭐⭐⭐⭐ - Excellent!\n• ⭐⭐⭐⭐ - Good\n• ⭐⭐⭐ - Average\n• ⭐⭐ - Not great\n• ⭐ - Poor\n\nYour feedback helps us improve! \U0001F64F", name)

	case KindResendReply:
		return p.Body
	}

	return "Notification from Fridge Business"
}

func serviceLabel(ticketType string) string {
	if ticketType == "sell" {
		return "fridge collection"
	}
	return "repair service"
}

func serviceTitle(ticketType string) string {
	if ticketType == "sell" {
		return "Fridge Collection"
	}
	return "Repair Service"
}
