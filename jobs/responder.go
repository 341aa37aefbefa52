package jobs

import "strings"

// Intents recognized by the keyword matcher.
const (
	intentHotelBooking = "hotel_booking"
	intentCancel       = "cancel_booking"
	intentHotelSearch  = "hotel_search"
	intentGeneral      = "general_query"
)

// detectIntent classifies a message by keyword. Booking keywords win over
// cancellation, so "cancel my booking" still routes through the booking
// flow where the reference is collected.
func detectIntent(content string) string {
	lc := strings.ToLower(content)
	switch {
	case strings.Contains(lc, "book") || strings.Contains(lc, "reservation"):
		return intentHotelBooking
	case strings.Contains(lc, "cancel"):
		return intentCancel
	case strings.Contains(lc, "search") || strings.Contains(lc, "find"):
		return intentHotelSearch
	default:
		return intentGeneral
	}
}

// composeReply renders the canned bot reply for the message's intent.
func composeReply(content string) string {
	switch detectIntent(content) {
	case intentHotelBooking:
		return "I'd be happy to help you book a hotel. Could you please provide the location and dates for your stay?"
	case intentCancel:
		return "I can help you cancel a booking. Could you please share your booking reference?"
	case intentHotelSearch:
		return "I can help you search for hotels. Could you please specify the location you're interested in?"
	default:
		return "I apologize, but I could not process your request."
	}
}
