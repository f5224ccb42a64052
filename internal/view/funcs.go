package view

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	titleCaser = cases.Title(language.English)
	printer    = message.NewPrinter(language.English)
)

func funcMap(opts Options) template.FuncMap {
	media := strings.TrimRight(opts.MediaBaseURL, "/")
	return template.FuncMap{
		"formatDate": func(v any) string {
			t, ok := asTime(v)
			if !ok {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatDay": func(v any) string {
			t, ok := asTime(v)
			if !ok {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"formatClock": func(v any) string {
			t, ok := asTime(v)
			if !ok {
				return ""
			}
			return t.Format("3:04 PM")
		},
		"timeAgo": func(v any) string {
			t, ok := asTime(v)
			if !ok {
				return ""
			}
			return TimeAgo(t, time.Now())
		},
		"humanize": Humanize,
		"title":    func(s string) string { return titleCaser.String(strings.ToLower(s)) },
		"money":    Money,
		"count":    Count,
		"mediaURL": func(p string) string { return MediaURL(media, p) },
		"add":      func(a, b int) int { return a + b },
		"eqID":     func(a, b int64) bool { return a == b },
		"svg":      func(s string) template.HTML { return template.HTML(s) },
		"dict": func(pairs ...any) (map[string]any, error) {
			if len(pairs)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			out := make(map[string]any, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				key, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
				}
				out[key] = pairs[i+1]
			}
			return out, nil
		},
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

// TimeAgo renders the coarse age used by notification cards.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hour ago", int(diff/time.Hour))
	}
	return fmt.Sprintf("%d day ago", int(diff/(24*time.Hour)))
}

// Humanize turns backend enums such as "WARM_TRANSFER" into "Warm Transfer".
func Humanize(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

// Money formats a backend decimal string as dollars. Non numeric input is
// returned unchanged.
func Money(v fmt.Stringer) string {
	raw := strings.TrimSpace(v.String())
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return "$" + strconv.FormatFloat(f, 'f', 2, 64)
}

// Count formats an integer with thousands separators.
func Count(v int64) string {
	return printer.Sprintf("%d", v)
}

// MediaURL resolves a profile image path against the media host.
func MediaURL(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if base == "" {
		return p
	}
	return base + "/" + strings.TrimLeft(p, "/")
}
