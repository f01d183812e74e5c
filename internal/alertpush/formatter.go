package alertpush

import (
	"fmt"
	"strconv"
	"time"

	"flipsol-keeper/internal/alertpush/platforms"
	"flipsol-keeper/internal/events"
)

const (
	defaultFooter = "flipsol round keeper"
	reasonLimit   = 300
)

// Format renders ev for a webhook. It reports false for events that are not
// worth a notification, including distributions where every credit succeeded.
func Format(ev events.Event) (platforms.Message, bool) {
	msg := platforms.Message{Timestamp: eventTimestamp(ev.ServerTS), Footer: defaultFooter}
	round := strconv.FormatUint(ev.RoundID, 10)

	switch data := ev.Data.(type) {
	case events.RoundSettled:
		msg.Title = fmt.Sprintf("Round %s settled", round)
		msg.Content = fmt.Sprintf("round %s settled, %s wins", round, data.WinningSide)
		msg.Description = fmt.Sprintf("Pot %s SOL, winning side %s.", data.TotalPotSOL, data.WinningSide)
		msg.Color = platforms.ColorOK
		msg.Fields = []platforms.Field{
			{Name: "Round", Value: round, Inline: true},
			{Name: "Outcome", Value: data.Outcome, Inline: true},
			{Name: "Winner", Value: fallback(data.WinningSide, "-"), Inline: true},
			{Name: "Pot (SOL)", Value: fallback(data.TotalPotSOL, "0"), Inline: true},
			{Name: "Signature", Value: fallback(data.Signature, "-"), Inline: false},
		}
	case events.SettlementDeferred:
		msg.Title = fmt.Sprintf("Round %s settlement blocked", round)
		msg.Content = fmt.Sprintf("round %s cannot settle: %s", round, data.Class)
		msg.Description = "A settlement account is missing or owned by the wrong program. The round stays open until it is fixed."
		msg.Color = platforms.ColorCritical
		msg.Fields = []platforms.Field{
			{Name: "Round", Value: round, Inline: true},
			{Name: "Class", Value: data.Class, Inline: true},
			{Name: "Reason", Value: trimText(data.Reason, reasonLimit), Inline: false},
		}
	case events.WinningsDistributed:
		if data.Failed == 0 {
			return platforms.Message{}, false
		}
		msg.Title = fmt.Sprintf("Round %s payouts incomplete", round)
		msg.Content = fmt.Sprintf("round %s: %d of %d credits failed", round, data.Failed, data.Winners)
		msg.Description = "Some winners were not credited. Re-run distribution for the round."
		msg.Color = platforms.ColorWarn
		msg.Fields = []platforms.Field{
			{Name: "Round", Value: round, Inline: true},
			{Name: "Succeeded", Value: strconv.Itoa(data.Succeeded), Inline: true},
			{Name: "Failed", Value: strconv.Itoa(data.Failed), Inline: true},
			{Name: "Skipped", Value: strconv.Itoa(data.Skipped), Inline: true},
		}
	default:
		return platforms.Message{}, false
	}
	return msg, true
}

func trimText(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	if max <= 3 {
		return v[:max]
	}
	return v[:max-3] + "..."
}

func eventTimestamp(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
