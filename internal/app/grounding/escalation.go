package grounding

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/brandbot/internal/app/inventory"
	"github.com/PabloGalante/brandbot/internal/domain"
)

// DefaultTriggers are complaint, defect and warranty/return phrases per language.
var DefaultTriggers = map[domain.Language][]string{
	domain.LangES: {
		"roto", "rota", "llego roto", "llegó roto", "defectuoso", "defectuosa", "estropeado", "averiado",
		"no funciona", "no enciende", "garantia", "garantía", "devolucion", "devolución", "devolver",
		"reembolso", "reclamacion", "reclamación", "queja", "dañado", "dañada",
	},
	domain.LangEN: {
		"broken", "arrived broken", "defective", "damaged", "faulty", "doesnt work", "does not work",
		"not working", "stopped working", "warranty", "refund", "return it", "return my", "complaint",
	},
}

// Detector recognises messages that must be escalated to a human channel.
// Every language's triggers are checked: customers do not always write in the
// operator's language.
type Detector struct {
	triggers []string
}

func NewDetector(triggers map[domain.Language][]string) *Detector {
	d := &Detector{}
	for _, list := range triggers {
		for _, t := range list {
			if n := strings.TrimSpace(inventory.Normalize(t)); n != "" {
				d.triggers = append(d.triggers, n)
			}
		}
	}
	return d
}

// Triggered matches whole words/phrases on the normalized message.
func (d *Detector) Triggered(message string) bool {
	padded := " " + strings.Join(strings.Fields(inventory.Normalize(message)), " ") + " "
	for _, t := range d.triggers {
		if strings.Contains(padded, " "+t+" ") {
			return true
		}
	}
	return false
}

// EscalationText points the customer to the most specific contact channel.
func EscalationText(p *domain.AgentProfile, lang domain.Language) string {
	var contact, site string
	if p != nil {
		switch {
		case p.ContactInfo.Support != "":
			contact = p.ContactInfo.Support
		case p.ContactInfo.Technical != "":
			contact = p.ContactInfo.Technical
		case p.ContactInfo.Sales != "":
			contact = p.ContactInfo.Sales
		}
		site = p.WebsiteURL
	}

	if lang == domain.LangEN {
		if contact == "" {
			return fmt.Sprintf("I'm sorry about the problem. Please contact our support team through %s so a person can help you.", orDefault(site, "our website"))
		}
		return fmt.Sprintf("I'm sorry about the problem. Please write to our support team at %s and a person will take care of it.", contact)
	}
	if contact == "" {
		return fmt.Sprintf("Siento mucho el problema. Contacta con nuestro equipo de soporte a través de %s para que una persona te atienda.", orDefault(site, "nuestra web"))
	}
	return fmt.Sprintf("Siento mucho el problema. Escribe a nuestro equipo de soporte en %s y una persona se encargará de ello.", contact)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
