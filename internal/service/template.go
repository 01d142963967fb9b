// internal/service/template.go
package service

import "strings"

// RenderTemplate substitutes {key} placeholders. Empty values fall back to
// "there" so a message never reads "Hi ,".
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "there"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}
