package flow

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

var leadPlaceholder = regexp.MustCompile(`\{\{\s*lead\.([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{lead.*}} placeholders with contact fields.
// Built-in fields first, then custom attributes; an unknown placeholder is
// left verbatim so typos are visible in the delivered message.
func RenderTemplate(tpl string, contact *models.Contact) string {
	if tpl == "" || contact == nil {
		return tpl
	}

	var attrs map[string]interface{}
	if len(contact.Attributes) > 0 {
		_ = json.Unmarshal(contact.Attributes, &attrs)
	}

	return leadPlaceholder.ReplaceAllStringFunc(tpl, func(match string) string {
		key := strings.ToLower(leadPlaceholder.FindStringSubmatch(match)[1])
		switch key {
		case "name":
			return contact.Name
		case "phone":
			return contact.Phone
		case "source":
			return contact.Source
		case "value":
			return contact.Value
		case "owner":
			return contact.Owner
		}
		if v, ok := attrs[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			encoded, err := json.Marshal(v)
			if err == nil {
				return string(encoded)
			}
		}
		return match
	})
}

func configString(cfg map[string]interface{}, key string) string {
	if cfg == nil {
		return ""
	}
	s, _ := cfg[key].(string)
	return strings.TrimSpace(s)
}

// configInt reads a numeric config value. JSON decodes numbers as float64,
// but editor payloads sometimes carry them as strings.
func configInt(cfg map[string]interface{}, key string) int {
	if cfg == nil {
		return 0
	}
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &n); err == nil {
			return int(n)
		}
	}
	return 0
}

func configStringSlice(cfg map[string]interface{}, key string) []string {
	if cfg == nil {
		return nil
	}
	raw, ok := cfg[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
