package grounding

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PabloGalante/brandbot/internal/domain"
)

var numberedLine = regexp.MustCompile(`^\d+[.)]\s`)

// ScrubText drops list lines and lines carrying raw URLs: links are rendered
// as cards, never inline.
func ScrubText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "•") || numberedLine.MatchString(trimmed) {
			continue
		}
		if strings.Contains(trimmed, "http://") || strings.Contains(trimmed, "https://") || strings.Contains(trimmed, "www.") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

var resultPhrases = []string{"aquí tienes", "aqui tienes", "opciones", "te muestro", "here are", "here is", "options", "take a look"}

// impliesResults reports prose that announces cards.
func impliesResults(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range resultPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func noMatchText(site string, lang domain.Language) string {
	if lang == domain.LangEN {
		return strings.TrimSpace(fmt.Sprintf("I couldn't find exact matches, please explore the store here: %s", site))
	}
	return strings.TrimSpace(fmt.Sprintf("No he encontrado resultados exactos, pero puedes explorar la tienda aquí: %s", site))
}

func cardsHeader(lang domain.Language) string {
	if lang == domain.LangEN {
		return "Here are the best options:"
	}
	return "Aquí tienes las mejores opciones:"
}

// checkingStockText is the reply used when the backend call fails.
func checkingStockText(lang domain.Language) string {
	if lang == domain.LangEN {
		return "One moment, I'm checking the stock..."
	}
	return "Un momento, estoy consultando el catálogo..."
}
