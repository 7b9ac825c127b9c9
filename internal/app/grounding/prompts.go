package grounding

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// maxCatalogInPrompt bounds how many catalog lines go into the system prompt.
const maxCatalogInPrompt = 200

func languageInstruction(lang domain.Language) string {
	if lang == domain.LangEN {
		return "REPLY IN ENGLISH."
	}
	return "RESPONDE EN ESPAÑOL."
}

func agentName(p *domain.AgentProfile) string {
	if p == nil || p.AgentName == "" {
		return "Asistente"
	}
	return p.AgentName
}

func businessContext(p *domain.AgentProfile) string {
	if p == nil || p.Summary == "" {
		return "Generic online store"
	}
	return p.Summary
}

// structuredSystemPrompt asks the backend to separate prose from product ids.
func structuredSystemPrompt(p *domain.AgentProfile, memory []domain.Product, lang domain.Language) string {
	var b strings.Builder
	b.WriteString(languageInstruction(lang))
	fmt.Fprintf(&b, "\nYOU ARE: %s, an expert sales assistant.\n", agentName(p))
	fmt.Fprintf(&b, "BUSINESS CONTEXT: %q\n", businessContext(p))
	if p != nil && p.SystemInstruction != "" {
		b.WriteString("PERSONA AND RULES:\n")
		b.WriteString(p.SystemInstruction)
		b.WriteString("\n")
	}
	b.WriteString(`
GROUNDING RULES:
- Only recommend products from the CATALOG below, by their exact id.
- Never invent prices, products or links. Never write URLs or product lists in "answer".
- If the request is outside the business context, politely explain what the store sells.
- "answer" is one or two short sentences. Put recommended ids in "recommendedProductIds".
`)
	b.WriteString("\nCATALOG (id | name | price | tags):\n")
	if p != nil {
		for i, prod := range p.Products {
			if i == maxCatalogInPrompt {
				break
			}
			fmt.Fprintf(&b, "%s | %s | %s | %s\n", prod.ID, prod.Name, prod.Price, strings.Join(prod.Tags, ","))
		}
	}
	if len(memory) > 0 {
		b.WriteString("\nINTERNAL MEMORY MATCHES for this message: ")
		names := make([]string, 0, len(memory))
		for _, m := range memory {
			names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.ID))
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// searchSystemPrompt is the free-text variant used with search augmentation.
func searchSystemPrompt(p *domain.AgentProfile, memory []domain.Product, lang domain.Language) string {
	var b strings.Builder
	b.WriteString(languageInstruction(lang))
	fmt.Fprintf(&b, "\nYOU ARE: %s, an expert sales assistant.\n", agentName(p))
	fmt.Fprintf(&b, "BUSINESS CONTEXT (IMPORTANT): %q\n", businessContext(p))
	if p != nil && p.SystemInstruction != "" {
		b.WriteString(p.SystemInstruction)
		b.WriteString("\n")
	}
	b.WriteString(`
ANTI-HALLUCINATION RULE: use the business context. If asked for something unrelated, decline politely and say what the store sells.
VISUAL FIRST: never write product lists as prose. If you find products or categories, say a very short sentence (max 10 words) and list the links found.
HYBRID SEARCH: check INTERNAL MEMORY first; otherwise search the web.
- For a specific product, search its price on the store site.
- For a category, search the URL of that section on the store site.
`)
	if p != nil && p.WebsiteURL != "" {
		fmt.Fprintf(&b, "STORE SITE: %s\n", p.WebsiteURL)
	}
	if len(memory) > 0 {
		parts := make([]string, 0, len(memory))
		for _, m := range memory {
			parts = append(parts, fmt.Sprintf("%s (%s)", m.Name, m.BuyURL))
		}
		fmt.Fprintf(&b, "\nINTERNAL MEMORY: found in my database: %s.\n", strings.Join(parts, ", "))
	}
	return b.String()
}
