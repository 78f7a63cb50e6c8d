package redis

import "fmt"

const ns = "tixpay:v1"

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyEventAvailability(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:availability", ns, eventID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemReservation(eventID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:reservations:%d:%s", ns, eventID, idemKey)
}

func ChannelInventoryChanged() string {
	return ns + ":inventory:changed"
}

func ChannelTicketsIssued() string {
	return ns + ":tickets:issued"
}
