package synth

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/brandbot/internal/domain"
)

func outputLanguage(lang domain.Language) string {
	if lang == domain.LangEN {
		return "OUTPUT JSON IN ENGLISH."
	}
	return "SALIDA JSON EN ESPAÑOL."
}

func phaseLabel(lang domain.Language, es, en string) string {
	if lang == domain.LangEN {
		return en
	}
	return es
}

func schemaPrompt(lang domain.Language, seeds []string) string {
	var b strings.Builder
	b.WriteString(outputLanguage(lang))
	b.WriteString(`
ACT AS A BRAND STRATEGIST AND PRODUCT CATALOGUER.

Using ONLY the business context above (documents, notes, seed URLs), produce the configuration of
a sales chatbot for this business:
- agentName, systemInstruction (persona of an expert salesperson plus every BUSINESS RULE above),
  summary of what the business sells, suggestedGreeting (short), brandColor (#HEX), keyTopics.
- websiteUrl: the canonical site root.
- navigationTree: main catalog categories with their real URLs.
- products: 20-30 representative products or services with exact name, price as written by the
  business, short description, real buy URL on the business site, type PRODUCT|SERVICE|LINK, tags.
- contactInfo: sales, support and technical emails when known. CONTACT CHANNEL lines above win.

Never invent URLs or prices. Omit a field rather than guessing it.
`)
	if len(seeds) > 0 {
		fmt.Fprintf(&b, "Seed URLs: %s\n", strings.Join(seeds, ", "))
	}
	return b.String()
}

func architecturePrompt(lang domain.Language) string {
	return outputLanguage(lang) + `
ACT AS A WEB ARCHITECT & BRAND STRATEGIST.

OBJECTIVE: Analyze the provided context/URLs to understand the BUSINESS STRUCTURE.

TASKS:
1. NAVIGATION TREE: identify the main product categories from the menu/sitemap, with their URLs.
2. BRANDING: detect the primary HEX color and define the agent's personality.
3. SUMMARY: a strategic summary of what the business sells.

ACTIONS (use web search): search "site:[domain] sitemap" or "site:[domain]" to find structure.

OUTPUT JSON (NO PRODUCTS YET):
{
  "systemInstruction": "Bot personality (sales expert) including every business rule.",
  "agentName": "Agent Name",
  "summary": "Strategic summary.",
  "suggestedGreeting": "Short sales greeting.",
  "brandColor": "#HEX",
  "websiteUrl": "https://domain.com",
  "keyTopics": ["Topic 1", "Topic 2"],
  "navigationTree": [{ "name": "Category Name", "url": "Real category URL" }],
  "contactInfo": { "sales": "", "support": "", "technical": "" }
}
`
}

func inventoryPrompt(lang domain.Language, categories []string, site string) string {
	cats := "General Products"
	if len(categories) > 0 {
		cats = strings.Join(categories, ", ")
	}
	return outputLanguage(lang) + fmt.Sprintf(`
ACT AS A PRODUCT INVENTORY SCANNER.

CONTEXT: we identified these main categories: %s.
TARGET DOMAIN: %s

OBJECTIVE: build a robust product database for the chatbot.

TASKS:
1. For EACH category, find 8-12 top-selling or representative products.
2. Extract EXACT name, price and REAL buy URL.
3. TOTAL: aim for 20-30 diverse products.

ACTIONS (use web search): search "site:%s [category] price" for each category and verify the URLs exist.

OUTPUT JSON:
{
  "products": [
    { "id": "prod-1", "name": "Product Name", "price": "19.99€", "description": "Brief description",
      "buyUrl": "REAL_URL", "type": "PRODUCT", "tags": ["category_name", "keyword"] }
  ]
}
`, cats, site, site)
}
