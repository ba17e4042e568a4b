package pricing

var domainDescriptions = map[string]string{
	"Électronique": "Appareils électroniques, composants, gadgets",
	"Mode":         "Vêtements, accessoires, chaussures",
	"Maison":       "Articles ménagers, décoration, mobilier",
	"Sport":        "Équipements sportifs, vêtements de sport",
	"Automobile":   "Pièces auto, accessoires véhicules",
	"Livres":       "Ouvrages, manuels, littérature",
	"Beauté":       "Cosmétiques, soins, parfums",
	"Alimentation": "Produits alimentaires, boissons",
}

// DomainDescription returns the human-readable description of a domain,
// with a generic fallback for domains outside the fixed table.
func DomainDescription(name string) string {
	if description, ok := domainDescriptions[name]; ok {
		return description
	}
	return "Secteur économique spécialisé"
}
