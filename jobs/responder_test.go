package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"I want to book a hotel", intentHotelBooking},
		{"Do you have a reservation for me?", intentHotelBooking},
		{"cancel my booking", intentHotelBooking},
		{"please cancel everything", intentCancel},
		{"find me a hotel in Ubud", intentHotelSearch},
		{"search hotels near the beach", intentHotelSearch},
		{"what is the weather like", intentGeneral},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, detectIntent(tc.content), tc.content)
	}
}

func TestComposeReplyFallback(t *testing.T) {
	reply := composeReply("gibberish input")
	require.Contains(t, reply, "could not process")
}
