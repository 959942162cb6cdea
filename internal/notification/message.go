package notification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sigflow/signalengine/internal/model"
)

// Price fields are rendered with this many decimals and parsed back exactly.
const pricePlaces = 2

// Parsed is what ParseMessage recovers from a formatted message.
type Parsed struct {
	Kind       EventKind
	Code       string
	Side       model.Side
	Entry      decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal

	// Closed messages only
	Outcome model.Outcome
	Price   decimal.Decimal
}

// Price renders v the way messages do: fixed two decimals.
func Price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(pricePlaces)
}

// FormatOpened renders an opened-signal message (Telegram Markdown).
func FormatOpened(label string, s model.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔹 *Signal %s %s* 🔹\n", s.Side, escapeMarkdown(label))
	fmt.Fprintf(&b, "📌 Code: %s\n", s.Code)
	fmt.Fprintf(&b, "📈 Entry: %s\n", Price(s.Entry))
	fmt.Fprintf(&b, "🎯 TP: %s\n", Price(s.TakeProfit))
	fmt.Fprintf(&b, "🛑 SL: %s", Price(s.StopLoss))
	return b.String()
}

// FormatClosed renders a closed-signal message.
func FormatClosed(label string, c model.Close) string {
	icon := "✅"
	if c.Outcome == model.OutcomeSL {
		icon = "❌"
	}
	s := c.Signal

	var b strings.Builder
	fmt.Fprintf(&b, "%s *Result %s %s* %s\n", icon, s.Side, escapeMarkdown(label), icon)
	fmt.Fprintf(&b, "📌 Code: %s\n", s.Code)
	fmt.Fprintf(&b, "📈 Entry: %s\n", Price(s.Entry))
	fmt.Fprintf(&b, "🎯 TP: %s\n", Price(s.TakeProfit))
	fmt.Fprintf(&b, "🛑 SL: %s\n", Price(s.StopLoss))
	fmt.Fprintf(&b, "🏁 Outcome: %s\n", c.Outcome)
	fmt.Fprintf(&b, "💰 Close: %s", Price(c.Price))
	return b.String()
}

var errNotSignal = errors.New("notification: not a signal message")

// ParseMessage recovers the fields of a message produced by FormatOpened or
// FormatClosed.
func ParseMessage(text string) (Parsed, error) {
	var p Parsed
	p.Kind = EventOpened

	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return p, errNotSignal
	}

	head, ok := boldText(lines[0])
	if !ok {
		return p, errNotSignal
	}
	f := strings.Fields(head)
	if len(f) < 2 || (f[0] != "Signal" && f[0] != "Result") {
		return p, errNotSignal
	}
	p.Side = model.Side(f[1])
	if p.Side != model.SideBuy && p.Side != model.SideSell {
		return p, fmt.Errorf("notification: bad side %q", f[1])
	}

	seen := map[string]bool{}
	for _, line := range lines[1:] {
		key, val, ok := field(line)
		if !ok {
			continue
		}
		var err error
		switch key {
		case "Code":
			p.Code = val
		case "Entry":
			p.Entry, err = decimal.NewFromString(val)
		case "TP":
			p.TakeProfit, err = decimal.NewFromString(val)
		case "SL":
			p.StopLoss, err = decimal.NewFromString(val)
		case "Outcome":
			p.Kind = EventClosed
			p.Outcome = model.Outcome(val)
		case "Close":
			p.Price, err = decimal.NewFromString(val)
		default:
			continue
		}
		if err != nil {
			return p, fmt.Errorf("notification: parse %s: %w", key, err)
		}
		seen[key] = true
	}

	for _, k := range []string{"Code", "Entry", "TP", "SL"} {
		if !seen[k] {
			return p, fmt.Errorf("notification: missing %s", k)
		}
	}
	if p.Kind == EventClosed && !seen["Close"] {
		return p, fmt.Errorf("notification: missing Close")
	}
	return p, nil
}

// boldText returns the text between the first pair of '*'.
func boldText(line string) (string, bool) {
	i := strings.IndexByte(line, '*')
	if i < 0 {
		return "", false
	}
	j := strings.IndexByte(line[i+1:], '*')
	if j < 0 {
		return "", false
	}
	return line[i+1 : i+1+j], true
}

// field splits "<icon> Key: value" into Key and value.
func field(line string) (key, val string, ok bool) {
	left, right, found := strings.Cut(line, ": ")
	if !found {
		return "", "", false
	}
	words := strings.Fields(left)
	if len(words) == 0 {
		return "", "", false
	}
	return words[len(words)-1], strings.TrimSpace(right), true
}

// escapeMarkdown escapes the characters legacy Telegram Markdown treats as markup.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '_', '*', '`', '[':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
