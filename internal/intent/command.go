package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MinDescriptionWords is the shortest free text the command classifier
// treats as a new item description.
const MinDescriptionWords = 3

var (
	reBHKToken = regexp.MustCompile(`^(\d+)\s*bhk$`)
	rePrice    = regexp.MustCompile(`^(?:₹|rs\.?)?(\d+(?:\.\d+)?)(k|l|lakh|lakhs|cr|crore|crores)?$`)
	reCompare  = regexp.MustCompile(`^(<=|>=|<|>|=)(.*)$`)
)

// commands maps the first word of a message to its action.
var commands = map[string]Action{
	"help":        ActionHelp,
	"menu":        ActionHelp,
	"list":        ActionListItems,
	"view":        ActionViewItem,
	"show":        ActionViewItem,
	"share":       ActionShareItem,
	"edit":        ActionEditItem,
	"delete":      ActionDeleteItem,
	"remove":      ActionDeleteItem,
	"activate":    ActionActivateItem,
	"disable":     ActionDisableItem,
	"deactivate":  ActionDisableItem,
	"profile":     ActionProfile,
	"editprofile": ActionEditProfile,
}

// CommandClassifier is the deterministic command table. It never fails.
type CommandClassifier struct{}

// Classify implements Classifier.
func (CommandClassifier) Classify(_ context.Context, text string) (Intent, error) {
	words := tokenize(text)
	if len(words) == 0 {
		return Intent{}, nil
	}

	head, args := words[0], words[1:]
	if head == "edit" && len(args) > 0 && args[0] == "profile" {
		return Intent{Action: ActionEditProfile}, nil
	}

	a, ok := commands[head]
	if !ok {
		if len(words) >= MinDescriptionWords {
			return Intent{Action: ActionCreateItem}, nil
		}
		return Intent{}, nil
	}

	in := Intent{Action: a}
	switch a {
	case ActionListItems:
		in.Filters = parseListArgs(args)
	case ActionViewItem, ActionEditItem, ActionDeleteItem, ActionActivateItem, ActionDisableItem:
		if len(args) > 0 {
			in.SubjectID = cleanSubject(args[0])
		}
	case ActionShareItem:
		if len(args) > 0 {
			in.SubjectID = cleanSubject(args[0])
		}
		if len(args) > 1 {
			in.Recipient = args[1]
		}
	}
	return in, nil
}

func tokenize(text string) []string {
	s := norm.NFKC.String(strings.TrimSpace(text))
	s = cases.Fold().String(s)
	return strings.Fields(s)
}

// cleanSubject strips the decoration users copy from list output ("[12]",
// "#12", "12,").
func cleanSubject(s string) string {
	return strings.Trim(s, "[]#.,:;")
}

// parseListArgs reads "list 2", "list pune", "list 2bhk pune under 50k",
// "list pune <=50,000". "<", "<=" and "=" bound the price from above; ">"
// and ">=" from below.
func parseListArgs(args []string) Filters {
	var (
		f    Filters
		city []string
	)
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if n, err := strconv.Atoi(tok); err == nil && n > 0 {
			if i+1 < len(args) && args[i+1] == "bhk" {
				f.BHK = n
				i++
				continue
			}
			if f.Page == 0 {
				f.Page = n
				continue
			}
		}
		if m := reBHKToken.FindStringSubmatch(tok); m != nil {
			f.BHK, _ = strconv.Atoi(m[1])
			continue
		}
		if (tok == "under" || tok == "below" || tok == "above" || tok == "over") && i+1 < len(args) {
			if v, ok := parsePriceToken(args[i+1]); ok {
				if tok == "under" || tok == "below" {
					f.MaxPrice = v
				} else {
					f.MinPrice = v
				}
				i++
				continue
			}
		}
		if m := reCompare.FindStringSubmatch(tok); m != nil {
			val, next := m[2], i
			if val == "" && i+1 < len(args) {
				val, next = args[i+1], i+1
			}
			if v, ok := parsePriceToken(val); ok {
				if m[1] == ">" || m[1] == ">=" {
					f.MinPrice = v
				} else {
					f.MaxPrice = v
				}
				i = next
				continue
			}
		}
		if tok == "in" {
			continue
		}
		city = append(city, tok)
	}
	f.City = strings.Join(city, " ")
	return f
}

func parsePriceToken(tok string) (float64, bool) {
	m := rePrice.FindStringSubmatch(strings.ReplaceAll(tok, ",", ""))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	switch m[2] {
	case "k":
		v *= 1e3
	case "l", "lakh", "lakhs":
		v *= 1e5
	case "cr", "crore", "crores":
		v *= 1e7
	}
	return v, true
}
